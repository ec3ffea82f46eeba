package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrTrailingData is returned when the stored text holds more than one JSON
// value.
var ErrTrailingData = errors.New("hydrate: trailing data after JSON value")

// Context carries identifiers tied to a stored payload.
type Context struct {
	Key string
}

// Check inspects a freshly decoded value before it becomes the initial
// content of a container. It may adjust the value in place.
type Check[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts stored JSON text into typed values.
type Decoder[T any] struct {
	checks    []Check[T]
	configure []func(*json.Decoder)
}

// WithCheck runs check after decoding. Checks run in registration order and
// the first failure aborts hydration.
func WithCheck[T any](check Check[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if check != nil {
			d.checks = append(d.checks, check)
		}
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, (*json.Decoder).UseNumber)
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, (*json.Decoder).DisallowUnknownFields)
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts text into T and runs the configured checks. The text must
// hold exactly one JSON value.
func (d *Decoder[T]) Decode(ctx Context, text string) (T, error) {
	var zero T

	var result T
	if err := decodeStrict(text, &result, d.configure...); err != nil {
		return zero, fmt.Errorf("hydrate: decode key %q: %w", ctx.Key, err)
	}

	for _, check := range d.checks {
		if err := check(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: check key %q: %w", ctx.Key, err)
		}
	}
	return result, nil
}

func decodeStrict(text string, target any, configure ...func(*json.Decoder)) error {
	decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
	for _, fn := range configure {
		fn(decoder)
	}
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}
