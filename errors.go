package persist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorageRequired indicates New was called without a storage service.
	ErrStorageRequired = errors.New("persist: storage is required")
	// ErrKeyRequired indicates New was called with an empty key.
	ErrKeyRequired = errors.New("persist: key is required")
	// ErrQuotaExceeded is returned by storage backends that refuse a write
	// because it would exceed their capacity.
	ErrQuotaExceeded = errors.New("persist: storage quota exceeded")
	// ErrGuardRejected indicates a guard rule evaluated to false.
	ErrGuardRejected = errors.New("persist: guard rejected value")
	// ErrRemoveUnsupported indicates the storage service cannot delete slots.
	ErrRemoveUnsupported = errors.New("persist: storage does not support remove")
	// ErrListUnsupported indicates the storage service cannot enumerate keys.
	ErrListUnsupported = errors.New("persist: storage does not support listing keys")
	// ErrNoEvaluator indicates no expression engine could be resolved.
	ErrNoEvaluator = errors.New("persist: evaluator not configured")
)

// DeserializationError reports stored text that is not a valid serialized
// value. It is returned by New; no container is created.
type DeserializationError struct {
	Key  string
	Text string
	Err  error
}

func (e *DeserializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persist: deserialize key=%q text=%s: %v", e.Key, describeText(e.Text), e.Err)
}

func (e *DeserializationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SerializationError reports content that cannot be encoded as JSON. Storage
// is left untouched when it is returned.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persist: serialize key=%q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StorageError reports a storage service failure during a read or write.
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persist: storage %s key=%q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError reports content rejected by Validate or a guard rule before
// write-back. Storage is left untouched when it is returned.
type ValidationError struct {
	Key  string
	Rule string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Rule == "" {
		return fmt.Sprintf("persist: validate key=%q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("persist: validate key=%q rule=%q: %v", e.Key, e.Rule, e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Key    string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("persist: %s evaluator %s key=%s: %v", e.Engine, describeExpression(e.Expr), e.Key, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

const maxDescribedText = 64

func describeText(text string) string {
	if len(text) <= maxDescribedText {
		return fmt.Sprintf("%q", text)
	}
	return fmt.Sprintf("%q...(%d bytes)", text[:maxDescribedText], len(text))
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "persist:") {
		return err
	}
	return fmt.Errorf("persist: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, key string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Key == "" {
			evalErr.Key = key
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Key:    key,
		Err:    err,
	}
}
