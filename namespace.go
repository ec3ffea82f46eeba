package persist

import (
	"strings"
)

// Namespace returns a Storage that stores every key under prefix, joined with
// "/" (tenant/acme plus settings becomes tenant/acme/settings). RemoveItem and
// Keys delegate to store when it supports them; Keys only reports keys under
// the prefix, with the prefix stripped.
func Namespace(store Storage, prefix string) Storage {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return store
	}
	return namespaced{store: store, prefix: prefix + "/"}
}

type namespaced struct {
	store  Storage
	prefix string
}

func (n namespaced) GetItem(key string) (string, bool, error) {
	return n.store.GetItem(n.prefix + key)
}

func (n namespaced) SetItem(key, value string) error {
	return n.store.SetItem(n.prefix+key, value)
}

func (n namespaced) RemoveItem(key string) error {
	remover, ok := n.store.(Remover)
	if !ok {
		return ErrRemoveUnsupported
	}
	return remover.RemoveItem(n.prefix + key)
}

func (n namespaced) Keys() ([]string, error) {
	lister, ok := n.store.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	keys, err := lister.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if rest, found := strings.CutPrefix(key, n.prefix); found {
			out = append(out, rest)
		}
	}
	return out, nil
}
