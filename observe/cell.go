// Package observe implements the observable cell the persistence layer is
// built on.
//
// A Cell holds one value and a list of watchers. Shallow watchers run when the
// value is replaced through Set. Deep watchers also run when the value is
// mutated in place through Update, or when Flush finds that the value drifted
// from the last observed snapshot (for example a nested map written through a
// reference returned by Get).
//
// Change detection is diff based: the cell keeps a deep copy of the last
// observed value and a watcher only runs when the current value differs from
// it.
package observe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-persist/snapshot"
)

// ErrNilMutator is returned by Update when fn is nil.
var ErrNilMutator = errors.New("observe: mutator is required")

// Change describes one observed mutation.
type Change[T any] struct {
	// Value is the current content of the cell.
	Value T
	// Previous is a deep copy of the content before the mutation.
	Previous T
	// Replaced is true when the mutation was a whole-value Set.
	Replaced bool
}

// Handler receives changes. A non-nil error is returned to the caller that
// triggered the mutation.
type Handler[T any] func(Change[T]) error

// WatchOption configures a watcher.
type WatchOption func(*watchConfig)

type watchConfig struct {
	deep bool
}

// Deep makes the watcher observe in-place mutations as well as replacement.
func Deep() WatchOption {
	return func(cfg *watchConfig) {
		cfg.deep = true
	}
}

type watcher[T any] struct {
	id      uint64
	deep    bool
	handler Handler[T]
}

// Cell is an observable value. Mutations are serialized: watchers of one
// mutation complete before the next mutation starts. Watchers run without
// the read lock held, so they may call Get, Snapshot and Watch, but must not
// mutate the cell that invoked them.
//
// The last observed snapshot only advances once every watcher of a change
// returns nil. After a failed notification, Flush or a repeated Set of the
// same value delivers the pending change again.
type Cell[T any] struct {
	mutate sync.Mutex

	mu       sync.Mutex
	value    T
	baseline T
	watchers []watcher[T]
	nextID   uint64
}

// New constructs a Cell holding initial. The value is stored as-is; no copy
// is made.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:    initial,
		baseline: snapshot.Clone(initial),
	}
}

// Get returns the current value. For reference types the returned value
// aliases the cell content; mutate it through Update, or call Flush after
// writing to it directly.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Snapshot returns a deep copy of the current value.
func (c *Cell[T]) Snapshot() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot.Clone(c.value)
}

// Set replaces the value and notifies watchers when it differs from the last
// observed value.
func (c *Cell[T]) Set(value T) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
	return c.notify(true)
}

// Update applies fn to the value in place and notifies deep watchers when the
// result differs from the last observed value. When fn fails the value is
// restored to a copy of its state before the call, its error is returned and
// no watcher runs. References obtained through Get before the failed call no
// longer alias the content.
func (c *Cell[T]) Update(fn func(*T) error) error {
	if fn == nil {
		return ErrNilMutator
	}
	c.mutate.Lock()
	defer c.mutate.Unlock()

	c.mu.Lock()
	before := snapshot.Clone(c.value)
	if err := fn(&c.value); err != nil {
		c.value = before
		c.mu.Unlock()
		return fmt.Errorf("observe: update: %w", err)
	}
	c.mu.Unlock()
	return c.notify(false)
}

// Flush compares the value against the last observed snapshot and notifies
// deep watchers when it changed outside of Set and Update, or when an earlier
// notification failed.
func (c *Cell[T]) Flush() error {
	c.mutate.Lock()
	defer c.mutate.Unlock()
	return c.notify(false)
}

// Watch registers h and returns a function that removes it. Watchers run in
// registration order.
func (c *Cell[T]) Watch(h Handler[T], opts ...WatchOption) (stop func()) {
	if h == nil {
		return func() {}
	}
	cfg := watchConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher[T]{id: id, deep: cfg.deep, handler: h})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Watchers reports the number of registered watchers.
func (c *Cell[T]) Watchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// notify must be called with c.mutate held.
func (c *Cell[T]) notify(replaced bool) error {
	c.mu.Lock()
	if snapshot.Equal(c.value, c.baseline) {
		c.mu.Unlock()
		return nil
	}
	change := Change[T]{
		Value:    c.value,
		Previous: c.baseline,
		Replaced: replaced,
	}
	observed := snapshot.Clone(c.value)
	watchers := append([]watcher[T](nil), c.watchers...)
	c.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		if !w.deep && !replaced {
			continue
		}
		if err := w.handler(change); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.mu.Lock()
	c.baseline = observed
	c.mu.Unlock()
	return nil
}
