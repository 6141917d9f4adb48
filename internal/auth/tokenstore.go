package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/manash/splendid/internal/config"
)

// TokenKey is the durable storage key holding the bearer token.
const TokenKey = "authToken"

// TokenStore persists the single bearer token between runs.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// FileTokenStore keeps the token in auth.json under the config directory.
type FileTokenStore struct {
	configDir string
}

// NewFileTokenStore creates a store in the platform config directory
func NewFileTokenStore() (*FileTokenStore, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &FileTokenStore{configDir: dir}, nil
}

// NewFileTokenStoreAt creates a store rooted at dir
func NewFileTokenStoreAt(dir string) *FileTokenStore {
	return &FileTokenStore{configDir: dir}
}

// Path returns the path to the auth.json file
func (s *FileTokenStore) Path() string {
	return filepath.Join(s.configDir, "auth.json")
}

// load reads the stored entries from disk
func (s *FileTokenStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse auth.json: %w", err)
	}
	return entries, nil
}

// save writes the entries with owner-only permissions
func (s *FileTokenStore) save(entries map[string]string) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write auth.json: %w", err)
	}
	return nil
}

// Token returns the stored token, or "" when none is stored
func (s *FileTokenStore) Token() (string, error) {
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	return entries[TokenKey], nil
}

// SetToken stores the token
func (s *FileTokenStore) SetToken(token string) error {
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[TokenKey] = token
	return s.save(entries)
}

// ClearToken removes the token. Clearing an absent token is not an error.
func (s *FileTokenStore) ClearToken() error {
	entries, err := s.load()
	if err != nil {
		// an unreadable file cannot hold a usable token; replace it
		return s.save(map[string]string{})
	}
	if _, ok := entries[TokenKey]; !ok {
		return nil
	}
	delete(entries, TokenKey)
	return s.save(entries)
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) ClearToken() error {
	return s.SetToken("")
}

// MaskToken returns a masked version of the token for display
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
