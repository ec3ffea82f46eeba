//go:build !(js && wasm)

package localstorage

import persist "github.com/goliatone/go-persist"

// Store is unavailable outside js/wasm.
type Store struct{}

// New reports ErrUnavailable outside js/wasm.
func New() (*Store, error) {
	return nil, ErrUnavailable
}

// GetItem implements persist.Storage.
func (*Store) GetItem(string) (string, bool, error) { return "", false, ErrUnavailable }

// SetItem implements persist.Storage.
func (*Store) SetItem(string, string) error { return ErrUnavailable }

var _ persist.Storage = (*Store)(nil)
