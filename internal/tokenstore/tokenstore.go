// Package tokenstore persists the KerbalX auth token as a plain-text file.
// The file holds exactly the token string with no framing.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the token file name used when none is configured.
const DefaultFileName = "KerbalX.key"

// ErrNoToken is returned by Load when no token has been persisted.
var ErrNoToken = errors.New("no persisted token")

// Store reads and writes a single token file.
type Store struct {
	path string
}

// New returns a Store for path. An empty path uses DefaultFileName in the
// working directory.
func New(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: resolved}, nil
}

// Path returns the absolute token file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted token with surrounding whitespace removed. A
// missing or blank file yields ErrNoToken.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save writes token, creating parent directories as needed.
func (s *Store) Save(token string) error {
	if token == "" {
		return fmt.Errorf("save token: %w", ErrNoToken)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Delete removes the token file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultFileName)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
