package persist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrFunctionNotFound is returned by Call for names nothing registered.
	ErrFunctionNotFound = errors.New("persist: function not registered")
	// ErrFunctionExists is returned by Register for a name already taken.
	// Names are case-insensitive.
	ErrFunctionExists = errors.New("persist: function already registered")
	// ErrInvalidFunction is returned by Register for an empty name or a nil
	// function.
	ErrInvalidFunction = errors.New("persist: invalid function")
)

// FunctionError reports a registry failure for one function name. Panics
// raised by a function during Call are reported as a FunctionError too, so a
// misbehaving helper fails the guard or evaluation instead of the process.
type FunctionError struct {
	Name string
	Err  error
}

func (e *FunctionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persist: function %q: %v", e.Name, e.Err)
}

func (e *FunctionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Function represents a helper callable from guard and Evaluate expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores helper functions keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register stores fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return &FunctionError{Name: name, Err: fmt.Errorf("%w: empty name", ErrInvalidFunction)}
	case fn == nil:
		return &FunctionError{Name: name, Err: fmt.Errorf("%w: nil function", ErrInvalidFunction)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return &FunctionError{Name: name, Err: ErrFunctionExists}
	}
	r.functions[key] = fn
	return nil
}

// Clone returns an independent registry holding the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (result any, err error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, &FunctionError{Name: name, Err: ErrFunctionNotFound}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = &FunctionError{Name: name, Err: fmt.Errorf("panic: %v", recovered)}
		}
	}()
	result, err = fn(args...)
	if err != nil {
		return nil, &FunctionError{Name: name, Err: err}
	}
	return result, nil
}

// Names returns the registered names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes registry to guard and Evaluate expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for guard and Evaluate
// expressions. A registration failure is returned by New.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
