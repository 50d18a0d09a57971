// Package namestore remembers the last display name used to join a table.
package namestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoPath = errors.New("name file path is empty")

type Store struct {
	path string
}

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// Load returns the saved name, or "" when nothing has been saved yet.
func (s *Store) Load() (string, error) {
	if s.path == "" {
		return "", ErrNoPath
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read name: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save replaces the saved name. The file is written next to the target and
// renamed into place so a crash never leaves half a name behind.
func (s *Store) Save(name string) error {
	if s.path == "" {
		return ErrNoPath
	}
	name = strings.TrimSpace(name)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".name-*")
	if err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(name); err != nil {
		tmp.Close()
		return fmt.Errorf("save name: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	return nil
}
