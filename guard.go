package persist

import (
	"fmt"
	"time"
)

type guard struct {
	expr string
	rule CompiledRule
}

func compileGuards(evaluator Evaluator, rules []string) ([]guard, error) {
	guards := make([]guard, 0, len(rules))
	for _, expr := range rules {
		rule, err := evaluator.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("persist: compile guard %q: %w", expr, err)
		}
		guards = append(guards, guard{expr: expr, rule: rule})
	}
	return guards, nil
}

// checkGuards runs every guard against the serialized content. The first
// rule that fails or does not return true stops the write-back.
func (c *Container[T]) checkGuards(generic any) error {
	ctx := RuleContext{Snapshot: generic, Key: c.key}
	engine := evaluatorEngineName(c.evaluator)
	for _, g := range c.guards {
		start := time.Now()
		result, err := g.rule.Evaluate(ctx)
		err = wrapEvaluationError(engine, g.expr, c.key, err)
		c.cfg.logger.Log(LogEvent{
			Op:       OpEvaluate,
			Key:      c.key,
			Engine:   engine,
			Expr:     g.expr,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return &ValidationError{Key: c.key, Rule: g.expr, Err: err}
		}
		passed, ok := result.(bool)
		if !ok {
			return &ValidationError{Key: c.key, Rule: g.expr, Err: fmt.Errorf("guard must return bool, got %T", result)}
		}
		if !passed {
			return &ValidationError{Key: c.key, Rule: g.expr, Err: ErrGuardRejected}
		}
	}
	return nil
}
