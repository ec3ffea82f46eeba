package persist

import "time"

// Log operations.
const (
	OpHydrate  = "hydrate"
	OpWrite    = "write"
	OpEvaluate = "evaluate"
	OpActivity = "activity"
)

// Hydration sources.
const (
	SourceStored  = "stored"
	SourceDefault = "default"
)

// LogEvent describes one storage, evaluation or activity attempt.
type LogEvent struct {
	Op       string
	Key      string
	Source   string
	Engine   string
	Expr     string
	Bytes    int
	Duration time.Duration
	Err      error
}

// Logger records persistence events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// WithLogger attaches a logger to the container.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
