package persist

import (
	"context"

	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/google/uuid"
)

// Option configures a container created by New.
type Option func(*config)

type config struct {
	ctx             context.Context
	logger          Logger
	activityHooks   activity.Hooks
	activityChannel string
	activityActor   string
	activityTenant  string
	useNumber       bool
	disallowUnknown bool
	guards          []string
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	skipValidation  bool
	checkHydrated   bool
	newID           func() string
	errs            []error
}

func applyOptions(opts []Option) config {
	cfg := config{
		ctx:    context.Background(),
		logger: noopLogger{},
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithContext sets the context handed to activity hooks.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// WithUseNumber decodes stored numbers held in interface values as
// json.Number instead of float64.
func WithUseNumber() Option {
	return func(cfg *config) {
		cfg.useNumber = true
	}
}

// WithDisallowUnknownFields makes hydration fail when the stored object has
// fields the content type does not declare.
func WithDisallowUnknownFields() Option {
	return func(cfg *config) {
		cfg.disallowUnknown = true
	}
}

// WithValidation toggles the Validate() error hook run before each
// write-back. It is enabled by default.
func WithValidation(enabled bool) Option {
	return func(cfg *config) {
		cfg.skipValidation = !enabled
	}
}

// WithHydrateValidation applies the Validate() error hook and the guards to
// stored content during New. Stored text that fails them is reported as a
// *DeserializationError wrapping the *ValidationError; the default is not
// used as a fallback.
func WithHydrateValidation() Option {
	return func(cfg *config) {
		cfg.checkHydrated = true
	}
}

// WithGuard adds a boolean rule that must hold for the content before it is
// written back. Rules are compiled when the container is created.
func WithGuard(rule string) Option {
	return func(cfg *config) {
		if rule != "" {
			cfg.guards = append(cfg.guards, rule)
		}
	}
}

// WithEvaluator configures the engine used by guards and Evaluate. The
// default is the expr engine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithIDGenerator overrides the container ID generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}
