package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
	// ErrNotEditable is returned for profiles declared in an included file or
	// in a Host line listing several aliases.
	ErrNotEditable = errors.New("profile is not editable in place")
)

// Secrets stores per-profile passwords.
type Secrets interface {
	Set(id, password string) error
	Delete(id string) error
}

// Store reads and writes profiles in an ssh config file.
type Store struct {
	path    string
	secrets Secrets
	now     func() time.Time
}

// NewStore returns a store over the ssh config at path. secrets may be nil,
// in which case passwords are ignored.
func NewStore(path string, secrets Secrets) *Store {
	return &Store{path: path, secrets: secrets, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Load parses the config including warnings.
func (s *Store) Load() (ParseResult, error) {
	return ParseFile(s.path)
}

// List returns every concrete profile sorted by id.
func (s *Store) List() ([]model.Profile, error) {
	res, err := s.Load()
	if err != nil {
		return nil, err
	}
	return res.Profiles, nil
}

// Search returns profiles whose id, address or user contains query,
// case-insensitively. A blank query lists everything.
func (s *Store) Search(query string) ([]model.Profile, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	out := make([]model.Profile, 0, len(all))
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.ID), q) ||
			strings.Contains(strings.ToLower(p.Address), q) ||
			strings.Contains(strings.ToLower(p.User), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) Get(id string) (model.Profile, error) {
	all, err := s.List()
	if err != nil {
		return model.Profile{}, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Own returns the fields the Host block of id sets itself, without values
// inherited from wildcard blocks. Edits start from it so that inherited
// settings are not copied into the block.
func (s *Store) Own(id string) (model.ProfileInput, error) {
	lines, span, err := s.locate(id)
	if err != nil {
		return model.ProfileInput{}, err
	}
	in := model.ProfileInput{ID: id}
	seen := map[string]bool{}
	for _, raw := range lines[span.start+1 : span.end] {
		key, value, ok := splitDirective(stripInlineComment(strings.TrimSpace(raw)))
		if !ok {
			continue
		}
		key = strings.ToLower(key)
		if seen[key] {
			continue
		}
		seen[key] = true
		switch key {
		case "hostname":
			in.Address = value
		case "user":
			in.User = value
		case "port":
			if n, err := strconv.Atoi(value); err == nil {
				in.Port = n
			}
		case "proxycommand":
			in.ProxyCommand = value
		case "identityfile":
			in.IdentityFile = value
		}
	}
	return in, nil
}

// Add appends a new Host block and stores the password, if any.
func (s *Store) Add(in model.ProfileInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if _, err := s.Get(in.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, in.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	content, err := s.read()
	if err != nil {
		return err
	}
	updated := appendBlock(content, FormatProfileBlock(in, nil))
	if err := writeFileAtomic(s.path, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write ssh config: %w", err)
	}
	if in.Password != "" && s.secrets != nil {
		if err := s.secrets.Set(in.ID, in.Password); err != nil {
			return fmt.Errorf("store password for %s: %w", in.ID, err)
		}
	}
	return nil
}

// Edit replaces the block of id with in. Directives the form does not manage
// are kept. An empty Password leaves any stored password untouched.
func (s *Store) Edit(id string, in model.ProfileInput) error {
	in.ID = id
	if err := validateInput(in); err != nil {
		return err
	}
	lines, span, err := s.locate(id)
	if err != nil {
		return err
	}
	block := FormatProfileBlock(in, unmanagedLines(lines, span))
	updated := joinLines(replaceBlock(lines, span, block))
	if err := writeFileAtomic(s.path, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write ssh config: %w", err)
	}
	if in.Password != "" && s.secrets != nil {
		if err := s.secrets.Set(id, in.Password); err != nil {
			return fmt.Errorf("store password for %s: %w", id, err)
		}
	}
	return nil
}

// Delete removes the block of id and its stored password.
func (s *Store) Delete(id string) error {
	lines, span, err := s.locate(id)
	if err != nil {
		return err
	}
	updated := joinLines(replaceBlock(lines, span, ""))
	if err := writeFileAtomic(s.path, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write ssh config: %w", err)
	}
	if s.secrets != nil {
		if err := s.secrets.Delete(id); err != nil {
			slog.Warn("failed to delete stored password", "profile", id, "error", err)
		}
	}
	return nil
}

// Backup copies the config next to itself as config.backup.YYYYmmdd_HHMMSS
// and returns the new path.
func (s *Store) Backup() (string, error) {
	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("open ssh config: %w", err)
	}
	defer src.Close()
	dst := fmt.Sprintf("%s.backup.%s", s.path, s.now().Format("20060102_150405"))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copy backup: %w", err)
	}
	return dst, out.Close()
}

func (s *Store) read() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read ssh config: %w", err)
	}
	return string(b), nil
}

// locate returns the root file lines and the editable block of id.
func (s *Store) locate(id string) ([]string, blockSpan, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, blockSpan{}, err
	}
	root, err := filepath.Abs(s.path)
	if err != nil {
		return nil, blockSpan{}, err
	}
	if p.Source != root {
		return nil, blockSpan{}, fmt.Errorf("%w: %s is declared in %s", ErrNotEditable, id, p.Source)
	}
	content, err := s.read()
	if err != nil {
		return nil, blockSpan{}, err
	}
	lines := splitLines(content)
	span, ok := findHostBlock(lines, id)
	if !ok {
		return nil, blockSpan{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(span.patterns) != 1 {
		return nil, blockSpan{}, fmt.Errorf("%w: %s shares a Host line with %s", ErrNotEditable, id, strings.Join(span.patterns, " "))
	}
	return lines, span, nil
}

func validateInput(in model.ProfileInput) error {
	if err := util.ValidateProfileID(in.ID); err != nil {
		return fmt.Errorf("host %q: %w", in.ID, err)
	}
	if util.HasWildcard(in.ID) {
		return fmt.Errorf("host %q: wildcard patterns cannot be managed as profiles", in.ID)
	}
	if err := util.ValidateAddress(in.Address); err != nil {
		return fmt.Errorf("hostname %q: %w", in.Address, err)
	}
	if err := util.ValidateUser(in.User); err != nil {
		return fmt.Errorf("user %q: %w", in.User, err)
	}
	if in.Port != 0 {
		if err := util.ValidatePort(in.Port); err != nil {
			return err
		}
	}
	return nil
}
