//go:build !js_eval

package persist

// NewJSEvaluator is unavailable without the js_eval build tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSEngineConfig(opts)
	return nil
}

// JSEvaluatorAvailable reports whether the binary was built with the js_eval tag.
func JSEvaluatorAvailable() bool {
	return false
}

func jsEngineName(Evaluator) (string, bool) {
	return "", false
}
