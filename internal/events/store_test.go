package events

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreAppendReadAndFilters(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	s := NewStore()

	base := time.Now().Add(-2 * time.Hour).UTC()
	sid := NewSessionID()
	seed := []Event{
		{Timestamp: base, SessionID: sid, Profile: "api", EventType: SessionStarted},
		{Timestamp: base.Add(10 * time.Minute), SessionID: sid, Profile: "api", EventType: SessionEnded, DurationMS: 600000},
		{Timestamp: base.Add(20 * time.Minute), Profile: "db", EventType: ProfileDeleted},
	}
	for _, evt := range seed {
		if err := s.Append(evt); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	profileOnly, err := s.Read(Query{Profile: "api"})
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if len(profileOnly) != 2 {
		t.Fatalf("expected 2 api events, got %d", len(profileOnly))
	}

	session, err := s.Read(Query{SessionID: sid, EventType: SessionEnded})
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if len(session) != 1 || session[0].DurationMS != 600000 {
		t.Fatalf("unexpected session result: %+v", session)
	}

	limited, err := s.Read(Query{Limit: 1})
	if err != nil {
		t.Fatalf("read limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Profile != "db" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}

	since, err := s.Read(Query{Since: base.Add(15 * time.Minute)})
	if err != nil {
		t.Fatalf("read since: %v", err)
	}
	if len(since) != 1 || since[0].EventType != ProfileDeleted {
		t.Fatalf("unexpected since result: %+v", since)
	}
}

func TestStoreAtMissingFile(t *testing.T) {
	s := NewStoreAt(filepath.Join(t.TempDir(), "none.jsonl"))
	got, err := s.Read(Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}
}
