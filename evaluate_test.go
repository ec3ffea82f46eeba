package persist_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	persist "github.com/goliatone/go-persist"
	"github.com/goliatone/go-persist/pkg/storage/memory"
)

type countingCache struct {
	*persist.MapProgramCache
	sets int
}

func (c *countingCache) Set(key string, value any) {
	c.sets++
	c.MapProgramCache.Set(key, value)
}

func newSettings(t *testing.T, opts ...persist.Option) *persist.Container[settings] {
	t.Helper()
	c, err := persist.New(memory.New(), "settings", settings{
		Theme:      "dark",
		Volume:     7,
		QuietHours: quietHours{Start: "22:00", End: "07:00"},
		Tags:       []string{"beta"},
	}, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestEvaluateDefaultsToExpr(t *testing.T) {
	c := newSettings(t)

	tests := []struct {
		expr string
		want any
	}{
		{`volume > 5 && theme == "dark"`, true},
		{`quiet_hours.start`, "22:00"},
		{`value.tags[0]`, "beta"},
		{`key`, "settings"},
		{`"beta" in tags`, true},
	}
	for _, tt := range tests {
		resp, err := c.Evaluate(tt.expr)
		if err != nil {
			t.Fatalf("evaluate %q: %v", tt.expr, err)
		}
		if resp.Value != tt.want {
			t.Fatalf("evaluate %q: expected %v, got %v", tt.expr, tt.want, resp.Value)
		}
	}
}

func TestEvaluateSeesLatestContent(t *testing.T) {
	c := newSettings(t)
	if err := c.Update(func(s *settings) error { s.Volume = 2; return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}
	resp, err := c.Evaluate(`volume`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != float64(2) {
		t.Fatalf("expected 2, got %v", resp.Value)
	}
}

func TestEvaluateWithArgsAndNow(t *testing.T) {
	c := newSettings(t)
	now := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	resp, err := c.EvaluateWith(persist.RuleContext{
		Now:  &now,
		Args: map[string]any{"limit": 5},
	}, `volume > args.limit && now.Hour() == 23`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != true {
		t.Fatalf("expected true, got %v", resp.Value)
	}
}

func TestEvaluateWithCEL(t *testing.T) {
	c := newSettings(t, persist.WithEvaluator(persist.NewCELEvaluator()))

	resp, err := c.Evaluate(`volume > 5 && theme == "dark" && value.quiet_hours.end == "07:00"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != true {
		t.Fatalf("expected true, got %v", resp.Value)
	}

	resp, err = c.Evaluate(`key + ":" + theme`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != "settings:dark" {
		t.Fatalf("unexpected value %v", resp.Value)
	}
}

func TestCELGuardsAndFunctions(t *testing.T) {
	registry := persist.NewFunctionRegistry()
	if err := registry.Register("allowed", func(args ...any) (any, error) {
		theme, _ := args[0].(string)
		return theme == "dark" || theme == "light", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	store := memory.New()
	c, err := persist.New(store, "settings", settings{Theme: "light"},
		persist.WithEvaluator(persist.NewCELEvaluator(
			persist.CELWithFunctionRegistry(registry),
			persist.CELWithProgramCache(persist.NewMapProgramCache()),
		)),
		persist.WithGuard(`call("allowed", [theme]) == true`),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := c.Update(func(s *settings) error { s.Theme = "dark"; return nil }); err != nil {
		t.Fatalf("expected allowed theme, got %v", err)
	}
	err = c.Update(func(s *settings) error { s.Theme = "neon"; return nil })
	if !errors.Is(err, persist.ErrGuardRejected) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
}

func TestCustomFunctionsInExpr(t *testing.T) {
	c := newSettings(t,
		persist.WithCustomFunction("double", func(args ...any) (any, error) {
			n, ok := args[0].(float64)
			if !ok {
				return nil, errors.New("double expects a number")
			}
			return n * 2, nil
		}),
	)

	resp, err := c.Evaluate(`double(volume)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != float64(14) {
		t.Fatalf("expected 14, got %v", resp.Value)
	}

	resp, err = c.Evaluate(`call("double", 2)`)
	if err != nil {
		t.Fatalf("evaluate call: %v", err)
	}
	if resp.Value != float64(4) {
		t.Fatalf("expected 4, got %v", resp.Value)
	}
}

func TestProgramCacheReusesCompiledRules(t *testing.T) {
	cache := &countingCache{MapProgramCache: persist.NewMapProgramCache()}
	c := newSettings(t, persist.WithProgramCache(cache))

	for i := 0; i < 3; i++ {
		if _, err := c.Evaluate(`volume + 1`); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("expected one compiled program cached, got %d", cache.sets)
	}
	if _, ok := cache.Get("expr:volume + 1"); !ok {
		t.Fatalf("expected program stored under engine-prefixed key")
	}
}

func TestEvaluateErrors(t *testing.T) {
	var logged []persist.LogEvent
	c := newSettings(t, persist.WithLogger(persist.LoggerFunc(func(event persist.LogEvent) {
		logged = append(logged, event)
	})))

	if _, err := c.Evaluate(""); err == nil {
		t.Fatalf("expected error for empty expression")
	}

	_, err := c.Evaluate(`volume >`)
	var evalErr *persist.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T %v", err, err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != `volume >` {
		t.Fatalf("unexpected metadata: %+v", evalErr)
	}

	last := logged[len(logged)-1]
	if last.Op != persist.OpEvaluate || last.Engine != "expr" || last.Err == nil {
		t.Fatalf("expected failed evaluation logged, got %+v", last)
	}
}

func TestCELEvaluateErrorCarriesKey(t *testing.T) {
	c := newSettings(t, persist.WithEvaluator(persist.NewCELEvaluator()))
	_, err := c.Evaluate(`missing_field > 1`)
	var evalErr *persist.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "cel" || evalErr.Key != "settings" {
		t.Fatalf("unexpected metadata: %+v", evalErr)
	}
	if !strings.Contains(err.Error(), "missing_field") {
		t.Fatalf("expected cel message to name the identifier, got %q", err.Error())
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := persist.NewFunctionRegistry()
	fn := func(args ...any) (any, error) { return len(args), nil }

	if err := registry.Register("Count", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("count", fn); !errors.Is(err, persist.ErrFunctionExists) {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
	if err := registry.Register(" ", fn); !errors.Is(err, persist.ErrInvalidFunction) {
		t.Fatalf("expected empty name to fail, got %v", err)
	}
	if err := registry.Register("nilfn", nil); !errors.Is(err, persist.ErrInvalidFunction) {
		t.Fatalf("expected nil function to fail, got %v", err)
	}

	got, err := registry.Call("COUNT", 1, 2, 3)
	if err != nil || got != 3 {
		t.Fatalf("expected 3, got %v err=%v", got, err)
	}
	_, err = registry.Call("missing")
	var fnErr *persist.FunctionError
	if !errors.As(err, &fnErr) || fnErr.Name != "missing" || !errors.Is(err, persist.ErrFunctionNotFound) {
		t.Fatalf("expected missing function error, got %v", err)
	}

	clone := registry.Clone()
	_ = clone.Register("extra", fn)
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("clone should be independent: %v vs %v", registry.Names(), clone.Names())
	}
}

func TestFunctionPanicFailsGuard(t *testing.T) {
	store := memory.New()
	c, err := persist.New(store, "n", 0,
		persist.WithCustomFunction("explode", func(...any) (any, error) {
			panic("kaboom")
		}),
		persist.WithGuard(`explode(value)`),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = c.Set(1)
	var validationErr *persist.ValidationError
	if !errors.As(err, &validationErr) || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic reported as guard failure, got %v", err)
	}
	if _, ok, _ := store.GetItem("n"); ok {
		t.Fatalf("rejected value must not be written")
	}
}

func TestCustomFunctionRegistrationErrorFailsNew(t *testing.T) {
	fn := func(...any) (any, error) { return nil, nil }
	_, err := persist.New(memory.New(), "n", 0,
		persist.WithCustomFunction("twice", fn),
		persist.WithCustomFunction("TWICE", fn),
	)
	if !errors.Is(err, persist.ErrFunctionExists) {
		t.Fatalf("expected duplicate function error from New, got %v", err)
	}
}
