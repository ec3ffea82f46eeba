package persist

// engineConfig is the state shared by the expr, CEL and JS evaluators: an
// optional program cache namespaced by engine and an optional function
// registry.
type engineConfig struct {
	engine   string
	cache    ProgramCache
	registry *FunctionRegistry
}

func (e *engineConfig) cachedProgram(key string) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(e.engine + ":" + key)
}

func (e *engineConfig) storeProgram(key string, program any) {
	if e.cache != nil {
		e.cache.Set(e.engine+":"+key, program)
	}
}

func (e *engineConfig) setRegistry(registry *FunctionRegistry) {
	if registry != nil {
		e.registry = registry.Clone()
	}
}

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*engineConfig)

// JSWithProgramCache applies a ProgramCache to the JS evaluator.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS evaluator.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.setRegistry(registry)
	}
}

func newJSEngineConfig(opts []JSEvaluatorOption) engineConfig {
	cfg := engineConfig{engine: "js"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
