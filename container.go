package persist

import (
	"sync"
	"time"

	"github.com/goliatone/go-persist/observe"
	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/goliatone/go-persist/snapshot"
)

// Container is an observable value persisted under a single storage key.
// Every mutation made through Set, Update, Flush or Reset that changes the
// content is serialized and written back before the call returns. When a
// write-back fails the change stays pending: Flush, or setting the same value
// again, retries it.
type Container[T any] struct {
	key          string
	id           string
	store        Storage
	cell         *observe.Cell[T]
	defaultValue T
	cfg          config
	emitter      *activity.Emitter
	guards       []guard

	evalMu    sync.Mutex
	evaluator Evaluator
}

// Key returns the storage key the container is bound to.
func (c *Container[T]) Key() string {
	return c.key
}

// ID returns the identifier attached to this container's activity events.
func (c *Container[T]) ID() string {
	return c.id
}

// Get returns the current content. For maps, slices, pointers and structs
// holding them, the result aliases the live content: mutate it through
// Update, or call Flush after changing it directly.
func (c *Container[T]) Get() T {
	return c.cell.Get()
}

// Snapshot returns a deep copy of the current content.
func (c *Container[T]) Snapshot() T {
	return c.cell.Snapshot()
}

// Set replaces the content and writes it back when it differs from the last
// persisted value.
func (c *Container[T]) Set(value T) error {
	return c.cell.Set(value)
}

// Update mutates the content in place. One call produces at most one
// write-back regardless of how many nested fields fn changes. When fn returns
// an error the content is restored to a copy of its state before the call and
// nothing is written.
func (c *Container[T]) Update(fn func(*T) error) error {
	return c.cell.Update(fn)
}

// Flush writes back changes made directly to the value returned by Get.
func (c *Container[T]) Flush() error {
	return c.cell.Flush()
}

// Watch registers an additional watcher on the content. It runs after the
// write-back watcher and may read the container, but must not mutate it.
// Pass observe.Deep() to be notified of nested mutations.
func (c *Container[T]) Watch(h observe.Handler[T], opts ...observe.WatchOption) (stop func()) {
	return c.cell.Watch(h, opts...)
}

// Reset replaces the content with a copy of the default value given to New
// and persists it.
func (c *Container[T]) Reset() error {
	return c.cell.Set(snapshot.Clone(c.defaultValue))
}

// Remove deletes the stored slot. The in-memory content is unchanged, and a
// later mutation that changes it writes the slot again. Storage services that
// do not implement Remover yield ErrRemoveUnsupported.
func (c *Container[T]) Remove() error {
	remover, ok := c.store.(Remover)
	if !ok {
		return ErrRemoveUnsupported
	}
	start := time.Now()
	err := remover.RemoveItem(c.key)
	if err != nil {
		err = &StorageError{Key: c.key, Op: "remove", Err: err}
	}
	c.cfg.logger.Log(LogEvent{
		Op:       OpWrite,
		Key:      c.key,
		Source:   "remove",
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return err
	}
	c.emit(activity.VerbRemoved, activity.SlotEventInput{})
	return nil
}

// Stored reports the raw text currently held by the storage service under
// the container's key.
func (c *Container[T]) Stored() (string, bool, error) {
	text, ok, err := c.store.GetItem(c.key)
	if err != nil {
		return "", false, &StorageError{Key: c.key, Op: "get", Err: err}
	}
	return text, ok, nil
}
