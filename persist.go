// Package persist binds observable values to durable slots in a synchronous
// string key-value storage service.
//
// New hydrates a container from the stored JSON text under a key, or from a
// default value when the slot is empty, and registers a deep watcher that
// writes the serialized content back after every observed mutation:
//
//	store := memory.New()
//	counter, err := persist.New(store, "count", 0)
//	if err != nil {
//		return err
//	}
//	_ = counter.Update(func(n *int) error { *n++; return nil })
//	// store now holds "1" under "count"
//
// Hydration and write-back are synchronous and surface their errors from the
// call that triggered them. There is no retry, no coalescing across calls and
// no coordination between containers sharing a key.
package persist

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-persist/internal/hydrate"
	"github.com/goliatone/go-persist/observe"
	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/goliatone/go-persist/snapshot"
)

// Storage is a synchronous string key-value store. GetItem reports ok=false
// when the key holds no value.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
}

// Remover is implemented by storage services that can delete a slot.
type Remover interface {
	RemoveItem(key string) error
}

// Lister is implemented by storage services that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// New creates a container bound to key in store. The initial content is the
// parsed stored text when the slot holds a value, and defaultValue itself
// otherwise. Stored text that does not parse as T fails with a
// *DeserializationError; the default is not used as a fallback.
func New[T any](store Storage, key string, defaultValue T, opts ...Option) (*Container[T], error) {
	if store == nil {
		return nil, ErrStorageRequired
	}
	if key == "" {
		return nil, ErrKeyRequired
	}

	cfg := applyOptions(opts)
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	c := &Container[T]{
		key:          key,
		id:           cfg.newID(),
		store:        store,
		cfg:          cfg,
		defaultValue: snapshot.Clone(defaultValue),
	}
	c.emitter = newEmitter(cfg, key, c.id)

	if len(cfg.guards) > 0 {
		evaluator, err := resolveEvaluator(cfg)
		if err != nil {
			return nil, err
		}
		guards, err := compileGuards(evaluator, cfg.guards)
		if err != nil {
			return nil, err
		}
		c.evaluator = evaluator
		c.guards = guards
	}

	initial, source, err := c.hydrate(defaultValue)
	if err != nil {
		return nil, err
	}

	c.cell = observe.New(initial)
	c.cell.Watch(c.writeBack, observe.Deep())

	c.emit(activity.VerbHydrated, activity.SlotEventInput{Source: source})
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](store Storage, key string, defaultValue T, opts ...Option) *Container[T] {
	c, err := New(store, key, defaultValue, opts...)
	if err != nil {
		panic(fmt.Sprintf("persist: %v", err))
	}
	return c
}

func (c *Container[T]) hydrate(defaultValue T) (T, string, error) {
	start := time.Now()
	text, ok, err := c.store.GetItem(c.key)
	if err != nil {
		err = &StorageError{Key: c.key, Op: "get", Err: err}
		c.logHydrate("", 0, start, err)
		var zero T
		return zero, "", err
	}
	if !ok || text == "" {
		c.logHydrate(SourceDefault, 0, start, nil)
		return defaultValue, SourceDefault, nil
	}

	value, err := c.decoder().Decode(hydrate.Context{Key: c.key}, text)
	if err != nil {
		err = &DeserializationError{Key: c.key, Text: text, Err: err}
		c.logHydrate(SourceStored, len(text), start, err)
		var zero T
		return zero, "", err
	}
	c.logHydrate(SourceStored, len(text), start, nil)
	return value, SourceStored, nil
}

func (c *Container[T]) decoder() *hydrate.Decoder[T] {
	var opts []hydrate.DecoderOption[T]
	if c.cfg.useNumber {
		opts = append(opts, hydrate.WithUseNumber[T]())
	}
	if c.cfg.disallowUnknown {
		opts = append(opts, hydrate.WithDisallowUnknownFields[T]())
	}
	if c.cfg.checkHydrated {
		opts = append(opts, hydrate.WithCheck[T](c.checkStored))
	}
	return hydrate.NewDecoder(opts...)
}

// checkStored runs the write-back checks against hydrated content.
func (c *Container[T]) checkStored(_ hydrate.Context, value *T) error {
	if !c.cfg.skipValidation {
		if err := validateValue(*value); err != nil {
			return &ValidationError{Key: c.key, Err: err}
		}
	}
	if len(c.guards) == 0 {
		return nil
	}
	generic, err := marshalGeneric(*value)
	if err != nil {
		return &SerializationError{Key: c.key, Err: err}
	}
	return c.checkGuards(generic)
}

func (c *Container[T]) logHydrate(source string, size int, start time.Time, err error) {
	c.cfg.logger.Log(LogEvent{
		Op:       OpHydrate,
		Key:      c.key,
		Source:   source,
		Bytes:    size,
		Duration: time.Since(start),
		Err:      err,
	})
}

// writeBack is the deep watcher registered by New. The text is fully built
// before the single SetItem call, so a failure leaves the slot untouched.
func (c *Container[T]) writeBack(change observe.Change[T]) error {
	start := time.Now()
	text, err := c.encode(change.Value)
	if err == nil {
		if setErr := c.store.SetItem(c.key, text); setErr != nil {
			err = &StorageError{Key: c.key, Op: "set", Err: setErr}
		}
	}

	c.cfg.logger.Log(LogEvent{
		Op:       OpWrite,
		Key:      c.key,
		Bytes:    len(text),
		Duration: time.Since(start),
		Err:      err,
	})

	input := activity.SlotEventInput{
		Bytes:    len(text),
		Err:      err,
		Metadata: map[string]any{"replaced": change.Replaced},
	}
	if err != nil {
		c.emit(activity.VerbWriteFailed, input)
		return err
	}
	c.emit(activity.VerbWritten, input)
	return nil
}
