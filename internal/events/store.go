// Package events keeps an append-only journal of sessions and profile changes
// in events.jsonl under the application config directory.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/treykane/ssh-conn/internal/appconfig"
)

// Event types written by the TUI and the CLI.
const (
	SessionStarted  = "session_started"
	SessionEnded    = "session_ended"
	SessionFailed   = "session_failed"
	HostKeyMismatch = "host_key_mismatch"
	HostKeyPurged   = "host_key_purged"
	ProfileAdded    = "profile_added"
	ProfileEdited   = "profile_edited"
	ProfileDeleted  = "profile_deleted"
	RenderReset     = "render_reset"
)

// Event is one journal record. SessionID ties together the records of one
// interactive session.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Profile    string    `json:"profile,omitempty"`
	EventType  string    `json:"event_type"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// Query controls event filtering and bounded reads.
type Query struct {
	Profile   string
	SessionID string
	EventType string
	Since     time.Time
	Limit     int
}

// Store provides append/read access to the local event journal.
type Store struct {
	path string
}

// NewStore returns a journal at the default location.
func NewStore() *Store {
	return &Store{}
}

// NewStoreAt returns a journal backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// NewSessionID returns a fresh id for a session's records.
func NewSessionID() string {
	return uuid.NewString()
}

func (s *Store) filePath() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "events.jsonl"), nil
}

// Append writes a single event as one JSON line.
func (s *Store) Append(evt Event) error {
	path, err := s.filePath()
	if err != nil {
		return err
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// Read returns events in append order, filtered by query, keeping the last
// Limit matches when Limit is set.
func (s *Store) Read(q Query) ([]Event, error) {
	path, err := s.filePath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		if !matches(evt, q) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

func matches(evt Event, q Query) bool {
	if strings.TrimSpace(q.Profile) != "" && evt.Profile != q.Profile {
		return false
	}
	if strings.TrimSpace(q.SessionID) != "" && evt.SessionID != q.SessionID {
		return false
	}
	if strings.TrimSpace(q.EventType) != "" && evt.EventType != q.EventType {
		return false
	}
	if !q.Since.IsZero() && evt.Timestamp.Before(q.Since) {
		return false
	}
	return true
}
