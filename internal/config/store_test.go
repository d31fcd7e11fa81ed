package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/ssh-conn/internal/model"
)

type memSecrets struct {
	values  map[string]string
	deleted []string
}

func (m *memSecrets) Set(id, password string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[id] = password
	return nil
}

func (m *memSecrets) Delete(id string) error {
	delete(m.values, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newTestStore(t *testing.T, content string) (*Store, *memSecrets) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	secrets := &memSecrets{}
	return NewStore(path, secrets), secrets
}

func readConfig(t *testing.T, s *Store) string {
	t.Helper()
	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	return string(b)
}

func TestStoreAddCreatesFileAndStoresPassword(t *testing.T) {
	s, secrets := newTestStore(t, "")

	err := s.Add(model.ProfileInput{ID: "box1", Address: "10.0.0.5", Password: "hunter2"})
	require.NoError(t, err)

	assert.Equal(t, "Host box1\n  HostName 10.0.0.5\n", readConfig(t, s))
	assert.Equal(t, "hunter2", secrets.values["box1"])

	st, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestStoreAddRejectsDuplicateAndInvalid(t *testing.T) {
	s, _ := newTestStore(t, "Host api\n  HostName api.internal\n")

	err := s.Add(model.ProfileInput{ID: "api", Address: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrExists)

	assert.Error(t, s.Add(model.ProfileInput{ID: "web-*", Address: "10.0.0.1"}))
	assert.Error(t, s.Add(model.ProfileInput{ID: "web", Address: ""}))
	assert.Error(t, s.Add(model.ProfileInput{ID: "web", Address: "10.0.0.1", Port: 70000}))
}

func TestStoreAddAppendsAfterExistingContent(t *testing.T) {
	s, _ := newTestStore(t, "Host api\n  HostName api.internal")

	require.NoError(t, s.Add(model.ProfileInput{ID: "db", Address: "10.0.0.2", User: "pg"}))

	want := "Host api\n  HostName api.internal\n\nHost db\n  HostName 10.0.0.2\n  User pg\n"
	assert.Equal(t, want, readConfig(t, s))
}

func TestStoreEditKeepsUnmanagedDirectives(t *testing.T) {
	s, secrets := newTestStore(t, "Host api\n  HostName old.internal\n  User root\n  ForwardAgent yes\n\nHost db\n  HostName db.internal\n")

	err := s.Edit("api", model.ProfileInput{ID: "ignored", Address: "new.internal", Port: 2222})
	require.NoError(t, err)

	want := "Host api\n  HostName new.internal\n  Port 2222\n  ForwardAgent yes\n\nHost db\n  HostName db.internal\n"
	assert.Equal(t, want, readConfig(t, s))
	assert.Empty(t, secrets.values, "empty password must not overwrite the stored one")

	p, err := s.Get("api")
	require.NoError(t, err)
	assert.Equal(t, "", p.User)
	assert.Equal(t, "yes", p.Options["forwardagent"])
}

func TestStoreEditRefusesIncludedProfile(t *testing.T) {
	d := t.TempDir()
	inc := filepath.Join(d, "extra.conf")
	require.NoError(t, os.WriteFile(inc, []byte("Host included\n  HostName 10.9.9.9\n"), 0o600))
	path := filepath.Join(d, "config")
	require.NoError(t, os.WriteFile(path, []byte("Include extra.conf\n"), 0o600))
	s := NewStore(path, nil)

	err := s.Edit("included", model.ProfileInput{Address: "10.1.1.1"})
	assert.ErrorIs(t, err, ErrNotEditable)
	assert.ErrorIs(t, s.Delete("included"), ErrNotEditable)
}

func TestStoreOwnLeavesOutInheritedValues(t *testing.T) {
	s, _ := newTestStore(t, "Host box\n  HostName 10.0.0.5\n  Port 2200 # ssh\n\nHost *\n  User root\n  IdentityFile ~/.ssh/shared_key\n")

	merged, err := s.Get("box")
	require.NoError(t, err)
	assert.Equal(t, "root", merged.User)

	own, err := s.Own("box")
	require.NoError(t, err)
	assert.Equal(t, model.ProfileInput{ID: "box", Address: "10.0.0.5", Port: 2200}, own)

	own.Address = "10.0.0.6"
	require.NoError(t, s.Edit("box", own))

	want := "Host box\n  HostName 10.0.0.6\n  Port 2200\n\nHost *\n  User root\n  IdentityFile ~/.ssh/shared_key\n"
	assert.Equal(t, want, readConfig(t, s))

	p, err := s.Get("box")
	require.NoError(t, err)
	assert.Equal(t, "root", p.User, "inherited values still apply after an edit")
	assert.Equal(t, "~/.ssh/shared_key", p.IdentityFile)

	_, err = s.Own("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteRemovesBlockAndPassword(t *testing.T) {
	s, secrets := newTestStore(t, "Host a\n  HostName a\n\nHost b\n  HostName b\n")
	require.NoError(t, secrets.Set("b", "pw"))

	require.NoError(t, s.Delete("b"))

	assert.Equal(t, "Host a\n  HostName a\n", readConfig(t, s))
	assert.Equal(t, []string{"b"}, secrets.deleted)
	assert.ErrorIs(t, s.Delete("b"), ErrNotFound)
}

func TestStoreSearchMatchesIDAddressAndUser(t *testing.T) {
	s, _ := newTestStore(t, "Host redis-1\n  HostName 10.0.0.1\nHost cache\n  HostName redis.internal\nHost web\n  HostName 10.0.0.3\n  User Redis\nHost db\n  HostName 10.0.0.4\n")

	got, err := s.Search("REDIS")
	require.NoError(t, err)
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"cache", "redis-1", "web"}, ids)

	all, err := s.Search("  ")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreBackupUsesTimestampSuffix(t *testing.T) {
	s, _ := newTestStore(t, "Host a\n  HostName a\n")
	s.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }

	dst, err := s.Backup()
	require.NoError(t, err)

	assert.Equal(t, s.Path()+".backup.20240309_140506", dst)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Host a\n  HostName a\n", string(b))
}
