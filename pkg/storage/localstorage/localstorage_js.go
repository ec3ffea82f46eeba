//go:build js && wasm

package localstorage

import (
	"fmt"
	"strings"
	"syscall/js"

	persist "github.com/goliatone/go-persist"
)

// Store wraps a Web Storage object.
type Store struct {
	storage js.Value
}

// New binds to window.localStorage.
func New() (*Store, error) {
	return FromValue(js.Global().Get("localStorage"))
}

// FromValue binds to any object implementing the Web Storage interface, such
// as sessionStorage.
func FromValue(storage js.Value) (*Store, error) {
	if storage.IsUndefined() || storage.IsNull() {
		return nil, ErrUnavailable
	}
	return &Store{storage: storage}, nil
}

// GetItem implements persist.Storage. getItem returns null for missing keys.
func (s *Store) GetItem(key string) (value string, ok bool, err error) {
	defer recoverJS("get", key, &err)
	result := s.storage.Call("getItem", key)
	if result.IsNull() || result.IsUndefined() {
		return "", false, nil
	}
	return result.String(), true, nil
}

// SetItem implements persist.Storage. A QuotaExceededError thrown by the
// browser is reported as persist.ErrQuotaExceeded.
func (s *Store) SetItem(key, value string) (err error) {
	defer recoverJS("set", key, &err)
	s.storage.Call("setItem", key, value)
	return nil
}

// RemoveItem implements persist.Remover.
func (s *Store) RemoveItem(key string) (err error) {
	defer recoverJS("remove", key, &err)
	s.storage.Call("removeItem", key)
	return nil
}

// Keys implements persist.Lister.
func (s *Store) Keys() (keys []string, err error) {
	defer recoverJS("keys", "", &err)
	n := s.storage.Get("length").Int()
	keys = make([]string, 0, n)
	for i := 0; i < n; i++ {
		key := s.storage.Call("key", i)
		if key.IsNull() {
			continue
		}
		keys = append(keys, key.String())
	}
	return keys, nil
}

// recoverJS turns a thrown JavaScript exception into an error.
func recoverJS(op, key string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	jsErr, ok := r.(js.Error)
	if !ok {
		panic(r)
	}
	name := jsErr.Value.Get("name")
	if name.Type() == js.TypeString && strings.Contains(name.String(), "Quota") {
		*err = fmt.Errorf("localstorage: %s %q: %w: %v", op, key, persist.ErrQuotaExceeded, jsErr)
		return
	}
	*err = fmt.Errorf("localstorage: %s %q: %w", op, key, jsErr)
}
