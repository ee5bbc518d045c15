package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UserSettings is one user's feed preferences.
type UserSettings struct {
	HiddenDomains []string `json:"hidden_domains"`
	ImageSource   string   `json:"image_source,omitempty"`
}

// Store is a file-backed map of user id to settings, written with the
// same temp-file-and-rename discipline as the credential store.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store over the given JSON file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the settings for a user, defaults when none are saved.
// Parameters:
//   - userID: user to look up.
// Returns:
//   - UserSettings: stored or zero-value settings.
//   - error: non-nil if the file exists but cannot be read.
func (s *Store) Get(userID string) (UserSettings, error) {
	all, err := s.load()
	if err != nil {
		return UserSettings{}, err
	}
	return all[userID], nil
}

// Put replaces the settings for a user and persists atomically.
// Parameters:
//   - userID: user to update.
//   - settings: new settings.
// Returns:
//   - error: non-nil if the write fails.
func (s *Store) Put(userID string, settings UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[userID] = settings
	return s.save(all)
}

func (s *Store) load() (map[string]UserSettings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]UserSettings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(data) == 0 {
		return map[string]UserSettings{}, nil
	}
	var all map[string]UserSettings
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return all, nil
}

func (s *Store) save(all map[string]UserSettings) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
