package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type fileSession struct {
	Token   string    `yaml:"token"`
	User    *Profile  `yaml:"user,omitempty"`
	SavedAt time.Time `yaml:"saved_at"`
}

// FileStore persists the session as a YAML file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath is the per-user session file location.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fleet-console", "session.yaml"), nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes token and user, replacing any previous session.
func (s *FileStore) Save(token string, user Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := yaml.Marshal(fileSession{Token: token, User: &user, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("apiclient: encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("apiclient: session dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// User returns the stored user, or nil when signed out.
func (s *FileStore) User() (*Profile, error) {
	sess, err := s.load()
	if err != nil || sess == nil {
		return nil, err
	}
	return sess.User, nil
}

// Token implements SessionStore.
func (s *FileStore) Token(context.Context) (string, error) {
	sess, err := s.load()
	if err != nil || sess == nil {
		return "", err
	}
	return sess.Token, nil
}

// Clear implements SessionStore.
func (s *FileStore) Clear(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileStore) load() (*fileSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var sess fileSession
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("apiclient: decode session %s: %w", s.path, err)
	}
	return &sess, nil
}
