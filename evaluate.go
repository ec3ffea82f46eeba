package persist

import (
	"fmt"
	"time"
)

// Evaluate executes expr against the current content using the configured
// evaluator (expr by default). The content is bound as value in its JSON
// form; object fields are also bound at top level, along with key.
func (c *Container[T]) Evaluate(expr string) (Response[any], error) {
	return c.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, filling Snapshot from the current
// content and Key from the container when they are unset.
func (c *Container[T]) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("persist: expression must not be empty")
	}
	evaluator, err := c.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Snapshot == nil {
		generic, err := marshalGeneric(c.cell.Snapshot())
		if err != nil {
			return Response[any]{}, &SerializationError{Key: c.key, Err: err}
		}
		ctx.Snapshot = generic
	}
	if ctx.Key == "" {
		ctx.Key = c.key
	}
	ctx = ctx.withDefaults()

	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	evalErr = wrapEvaluationError(engine, expr, ctx.keyLabel(), evalErr)
	c.cfg.logger.Log(LogEvent{
		Op:       OpEvaluate,
		Key:      ctx.keyLabel(),
		Engine:   engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func (c *Container[T]) resolveEvaluator() (Evaluator, error) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()
	if c.evaluator != nil {
		return c.evaluator, nil
	}
	evaluator, err := resolveEvaluator(c.cfg)
	if err != nil {
		return nil, err
	}
	c.evaluator = evaluator
	return evaluator, nil
}

func resolveEvaluator(cfg config) (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	evaluator := NewExprEvaluator(exprOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if name, ok := jsEngineName(e); ok {
			return name
		}
		return "custom"
	}
}
