// Package file provides a persist.Storage that keeps each slot in its own
// file under a directory. Writes go to a temporary file that is renamed over
// the slot, so readers never observe a partially written value.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	persist "github.com/goliatone/go-persist"
)

const extension = ".json"

// Store keeps slots as files in a directory.
type Store struct {
	dir  string
	perm os.FileMode
}

// Option configures a Store.
type Option func(*Store)

// WithFileMode sets the permissions of slot files. The default is 0o600.
func WithFileMode(perm os.FileMode) Option {
	return func(s *Store) {
		s.perm = perm
	}
}

// Open returns a Store rooted at dir, creating the directory when missing.
func Open(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("file: storage directory is required")
	}
	s := &Store{dir: filepath.Clean(dir), perm: 0o600}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create %s: %w", s.dir, err)
	}
	return s, nil
}

// Dir returns the directory holding the slot files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+extension)
}

// GetItem implements persist.Storage.
func (s *Store) GetItem(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("file: read %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem implements persist.Storage.
func (s *Store) SetItem(key, value string) error {
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("file: set %q: %w", key, classify(err))
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: set %q: %w", key, classify(err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file: sync %q: %w", key, classify(err))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file: close %q: %w", key, err)
	}
	if err := os.Chmod(tmpName, s.perm); err != nil {
		cleanup()
		return fmt.Errorf("file: chmod %q: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("file: rename %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements persist.Remover. Removing a missing key is a no-op.
func (s *Store) RemoveItem(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file: remove %q: %w", key, err)
	}
	return nil
}

// Keys implements persist.Lister. Keys are returned sorted.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file: list %s: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, extension) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, extension))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// classify maps a full disk onto persist.ErrQuotaExceeded.
func classify(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return errors.Join(persist.ErrQuotaExceeded, err)
	}
	return err
}
