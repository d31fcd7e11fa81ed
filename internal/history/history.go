// Package history remembers when each profile was last connected to.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/model"
)

type store struct {
	LastUsed map[string]int64 `json:"last_used"`
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// Touch records a successful session for a profile id.
func Touch(id string) error {
	st, err := load()
	if err != nil {
		return err
	}
	st.LastUsed[id] = time.Now().Unix()
	return save(st)
}

// Forget drops the entry of a deleted profile.
func Forget(id string) error {
	st, err := load()
	if err != nil {
		return err
	}
	if _, ok := st.LastUsed[id]; !ok {
		return nil
	}
	delete(st.LastUsed, id)
	return save(st)
}

// Recorder exposes Touch and Forget as methods for callers that take an
// interface.
type Recorder struct{}

func (Recorder) Touch(id string) error  { return Touch(id) }
func (Recorder) Forget(id string) error { return Forget(id) }

// LastUsed returns last session timestamps by profile id.
func LastUsed() (map[string]int64, error) {
	st, err := load()
	if err != nil {
		return nil, err
	}
	return st.LastUsed, nil
}

// SortProfilesRecent returns a new slice sorted by recent use (desc), then id.
func SortProfilesRecent(profiles []model.Profile, lastUsed map[string]int64) []model.Profile {
	out := append([]model.Profile(nil), profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		ti := lastUsed[out[i].ID]
		tj := lastUsed[out[j].ID]
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func load() (store, error) {
	path, err := filePath()
	if err != nil {
		return store{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store{LastUsed: map[string]int64{}}, nil
		}
		return store{}, err
	}
	var st store
	if err := json.Unmarshal(b, &st); err != nil {
		return store{LastUsed: map[string]int64{}}, nil
	}
	if st.LastUsed == nil {
		st.LastUsed = map[string]int64{}
	}
	return st, nil
}

func save(st store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
