// Package logging adapts persist log events to zap.
package logging

import (
	"fmt"
	"strings"

	persist "github.com/goliatone/go-persist"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at level ("debug", "info", "warn", "error").
// Development mode uses the console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if strings.TrimSpace(level) != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Adapter implements persist.Logger on top of zap. Failed operations are
// logged at error level, everything else at debug.
type Adapter struct {
	logger *zap.Logger
}

// NewAdapter wraps logger. A nil logger yields a no-op adapter.
func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger.Named("persist")}
}

// Log implements persist.Logger.
func (a *Adapter) Log(event persist.LogEvent) {
	fields := make([]zap.Field, 0, 7)
	fields = append(fields, zap.String("key", event.Key), zap.Duration("duration", event.Duration))
	if event.Source != "" {
		fields = append(fields, zap.String("source", event.Source))
	}
	if event.Engine != "" {
		fields = append(fields, zap.String("engine", event.Engine))
	}
	if event.Expr != "" {
		fields = append(fields, zap.String("expr", event.Expr))
	}
	if event.Bytes > 0 {
		fields = append(fields, zap.Int("bytes", event.Bytes))
	}

	msg := event.Op
	if event.Err != nil {
		a.logger.Error(msg+" failed", append(fields, zap.Error(event.Err))...)
		return
	}
	a.logger.Debug(msg, fields...)
}

var _ persist.Logger = (*Adapter)(nil)
