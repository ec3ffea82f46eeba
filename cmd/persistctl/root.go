package main

import (
	"context"
	"fmt"
	"io"

	persist "github.com/goliatone/go-persist"
	"github.com/goliatone/go-persist/pkg/activity"
	"github.com/goliatone/go-persist/pkg/config"
	"github.com/goliatone/go-persist/pkg/logging"
	"github.com/goliatone/go-persist/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the state shared by all subcommands for one invocation.
type app struct {
	out io.Writer

	configPath string
	backend    string
	path       string
	namespace  string
	verbose    bool

	cfg     config.Config
	logger  *zap.Logger
	store   persist.Storage
	closeFn func() error
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "persistctl",
		Short:         "Inspect and edit persisted JSON slots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.backend, "backend", "", "storage backend (memory, file, sqlite, localstorage)")
	flags.StringVar(&a.path, "path", "", "directory or database path for the backend")
	flags.StringVar(&a.namespace, "namespace", "", "key prefix applied to every slot")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every storage operation")

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newIncrCmd(a),
		newRemoveCmd(a),
		newKeysCmd(a),
		newEvalCmd(a),
	)
	return root
}

// open resolves configuration (file, then env, then flags) and opens the
// backend.
func (a *app) open(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.Load(a.configPath, func(cfg *config.Config) {
		if flags.Changed("backend") {
			cfg.Backend = a.backend
		}
		if flags.Changed("path") {
			cfg.Path = a.path
		}
		if flags.Changed("namespace") {
			cfg.Namespace = a.namespace
		}
		if a.verbose {
			cfg.Log.Level = "debug"
		}
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	store, closeFn, err := storage.Open(cfg)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}

	a.cfg = cfg
	a.logger = logger
	a.store = store
	a.closeFn = closeFn
	logger.Debug("storage opened",
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.Path),
		zap.String("namespace", cfg.Namespace),
	)
	return nil
}

func (a *app) close() error {
	var err error
	if a.closeFn != nil {
		err = a.closeFn()
		a.closeFn = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// options returns the container options implied by the configuration.
func (a *app) options(engine string) ([]persist.Option, error) {
	opts := []persist.Option{
		persist.WithLogger(logging.NewAdapter(a.logger)),
	}
	if engine == "" {
		engine = a.cfg.Rules.Engine
	}
	evaluator, err := newEvaluator(engine)
	if err != nil {
		return nil, err
	}
	if evaluator != nil {
		opts = append(opts, persist.WithEvaluator(evaluator))
	}
	for _, guard := range a.cfg.Rules.Guards {
		opts = append(opts, persist.WithGuard(guard))
	}
	if a.cfg.Activity.Enabled {
		opts = append(opts,
			persist.WithActivityHooks(activity.Hooks{activity.HookFunc(a.logActivity)}),
			persist.WithActivityChannel(a.cfg.Activity.Channel),
		)
	}
	return opts, nil
}

func (a *app) logActivity(_ context.Context, event activity.Event) error {
	a.logger.Info("activity",
		zap.String("verb", event.Verb),
		zap.String("object_id", event.ObjectID),
		zap.String("channel", event.Channel),
		zap.Any("metadata", event.Metadata),
	)
	return nil
}

func newEvaluator(engine string) (persist.Evaluator, error) {
	switch engine {
	case "", config.EngineExpr:
		return nil, nil
	case config.EngineCEL:
		return persist.NewCELEvaluator(), nil
	case config.EngineJS:
		if !persist.JSEvaluatorAvailable() {
			return nil, fmt.Errorf("js engine requires a build with -tags js_eval")
		}
		return persist.NewJSEvaluator(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}
