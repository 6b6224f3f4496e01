// Package credstore persists the CLI session between invocations.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const credentialsFile = "credentials.json"

var ErrNotLoggedIn = errors.New("not logged in")

type Credentials struct {
	Server       string `json:"server"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

// FileStore keeps credentials in a 0600 JSON file.
type FileStore struct {
	path string
}

// NewFileStore stores under dir, or ~/.mutamba when dir is empty.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".mutamba")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, credentialsFile)}, nil
}

func (s *FileStore) Save(creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if creds.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}
	return &creds, nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
