package persist

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// MapProgramCache is a concurrency safe, unbounded ProgramCache.
type MapProgramCache struct {
	entries sync.Map
}

// NewMapProgramCache constructs an empty MapProgramCache.
func NewMapProgramCache() *MapProgramCache {
	return &MapProgramCache{}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	return c.entries.Load(key)
}

func (c *MapProgramCache) Set(key string, value any) {
	c.entries.Store(key, value)
}
