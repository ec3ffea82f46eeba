// Package config loads process-level settings for persist storage backends
// from a YAML file overlaid by PERSIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PERSIST_"

// Backend names accepted by Config.Backend.
const (
	BackendMemory       = "memory"
	BackendFile         = "file"
	BackendSQLite       = "sqlite"
	BackendLocalStorage = "localstorage"
)

// Rule engines accepted by Rules.Engine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Config describes the storage backend and the ambient services around it.
type Config struct {
	Backend   string `yaml:"backend" env:"BACKEND"`
	Path      string `yaml:"path" env:"PATH"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Quota caps the memory backend in bytes. Zero means unlimited.
	Quota int    `yaml:"quota" env:"QUOTA"`
	Table string `yaml:"table" env:"TABLE"`

	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Rules    RulesConfig    `yaml:"rules" envPrefix:"RULES_"`
	Activity ActivityConfig `yaml:"activity" envPrefix:"ACTIVITY_"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// RulesConfig selects the expression engine and the guards applied to every
// container.
type RulesConfig struct {
	Engine string   `yaml:"engine" env:"ENGINE"`
	Guards []string `yaml:"guards,omitempty" env:"GUARDS" envSeparator:";"`
}

// ActivityConfig controls activity event emission.
type ActivityConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Channel string `yaml:"channel" env:"CHANNEL"`
}

// Default returns the settings used when neither file nor environment
// provide a value.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		Log: LogConfig{
			Level: "info",
		},
		Rules: RulesConfig{
			Engine: EngineExpr,
		},
		Activity: ActivityConfig{
			Channel: "persist",
		},
	}
}

// Load reads path (skipped when empty or missing), applies environment
// variables, then overrides in order, and validates the result.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays PERSIST_* environment variables onto cfg. Unset
// variables leave the current value in place.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Validate checks the backend name, its required settings and the engine.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendLocalStorage:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			errs = append(errs, fmt.Errorf("config: backend %q requires path", c.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown backend %q", c.Backend))
	}
	if c.Quota < 0 {
		errs = append(errs, fmt.Errorf("config: quota must not be negative"))
	}
	switch c.Rules.Engine {
	case "", EngineExpr, EngineCEL, EngineJS:
	default:
		errs = append(errs, fmt.Errorf("config: unknown rules engine %q", c.Rules.Engine))
	}
	return errors.Join(errs...)
}

// Save writes cfg to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
