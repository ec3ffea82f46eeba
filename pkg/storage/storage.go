// Package storage opens the persist.Storage backend selected by a
// config.Config.
package storage

import (
	"fmt"

	persist "github.com/goliatone/go-persist"
	"github.com/goliatone/go-persist/pkg/config"
	"github.com/goliatone/go-persist/pkg/storage/file"
	"github.com/goliatone/go-persist/pkg/storage/localstorage"
	"github.com/goliatone/go-persist/pkg/storage/memory"
	"github.com/goliatone/go-persist/pkg/storage/sqlite"
)

// Open constructs the configured backend, wrapped in persist.Namespace when a
// namespace is set. The returned close function releases backend resources
// and is never nil.
func Open(cfg config.Config) (persist.Storage, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		store   persist.Storage
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.New(memory.WithQuota(cfg.Quota))
	case config.BackendFile:
		fs, err := file.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case config.BackendSQLite:
		var opts []sqlite.Option
		if cfg.Table != "" {
			opts = append(opts, sqlite.WithTable(cfg.Table))
		}
		db, err := sqlite.Open(cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		store = db
		closeFn = db.Close
	case config.BackendLocalStorage:
		ls, err := localstorage.New()
		if err != nil {
			return nil, nil, err
		}
		store = ls
	default:
		return nil, nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}

	return persist.Namespace(store, cfg.Namespace), closeFn, nil
}
