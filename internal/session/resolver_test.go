package session

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/engine/enginetest"
	"github.com/dshills/debugstorm/internal/evaluator"
)

func TestResolveExpression_Memoizes(t *testing.T) {
	eng := enginetest.New()
	calls := 0
	s, _ := newInlineSession(t, eng, func(cfg *Config) {
		cfg.TypeResolverHandler = func(identifier string, _ engine.SourceLocation) (string, error) {
			calls++
			return "Fully.Qualified." + identifier, nil
		}
	})

	loc := engine.SourceLocation{File: "main.go", Line: 10}
	for i := 0; i < 3; i++ {
		if got := s.ResolveExpression("Thing", loc); got != "Fully.Qualified.Thing" {
			t.Fatalf("ResolveExpression() = %q", got)
		}
	}
	if calls != 1 {
		t.Errorf("resolver invocations = %d, want 1", calls)
	}

	// A different location is a different cache key.
	other := engine.SourceLocation{File: "other.go", Line: 3}
	if got := s.ResolveExpression("Thing", other); got != "Fully.Qualified.Thing" {
		t.Fatalf("ResolveExpression() = %q", got)
	}
	if calls != 2 {
		t.Errorf("resolver invocations = %d, want 2", calls)
	}
}

func TestResolveExpression_Declined(t *testing.T) {
	eng := enginetest.New()
	calls := 0
	s, _ := newInlineSession(t, eng, func(cfg *Config) {
		cfg.TypeResolverHandler = func(string, engine.SourceLocation) (string, error) {
			calls++
			return "", nil
		}
	})

	loc := engine.SourceLocation{File: "main.go", Line: 10}
	if got := s.ResolveExpression("x", loc); got != "x" {
		t.Errorf("declined resolution should return the original, got %q", got)
	}
	// Declines are cached.
	if got := s.ResolveExpression("x", loc); got != "x" {
		t.Errorf("ResolveExpression() = %q", got)
	}
	if calls != 1 {
		t.Errorf("resolver invocations = %d, want 1", calls)
	}
}

func TestResolveExpression_FailureNotCached(t *testing.T) {
	eng := enginetest.New()
	calls := 0
	s, logs := newInlineSession(t, eng, func(cfg *Config) {
		cfg.TypeResolverHandler = func(string, engine.SourceLocation) (string, error) {
			calls++
			return "", errors.New("resolver exploded")
		}
	})

	loc := engine.SourceLocation{File: "main.go", Line: 10}
	if got := s.ResolveExpression("x", loc); got != "x" {
		t.Errorf("failed resolution should return the original, got %q", got)
	}
	if !logs.contains("resolver exploded") {
		t.Error("resolver failure not logged")
	}

	// Failures are retried, not cached.
	s.ResolveExpression("x", loc)
	if calls != 2 {
		t.Errorf("resolver invocations = %d, want 2", calls)
	}
}

func TestResolveExpression_PanicRecovered(t *testing.T) {
	eng := enginetest.New()
	s, logs := newInlineSession(t, eng, func(cfg *Config) {
		cfg.TypeResolverHandler = func(string, engine.SourceLocation) (string, error) {
			panic("resolver bug")
		}
	})

	got := s.ResolveExpression("x", engine.SourceLocation{File: "main.go", Line: 1})
	if got != "x" {
		t.Errorf("panicking resolver should return the original, got %q", got)
	}
	if !logs.contains("resolver bug") {
		t.Error("resolver panic not logged")
	}
}

func TestResolveExpression_EngineFallback(t *testing.T) {
	eng := enginetest.New()
	eng.ResolveFunc = func(expression string, _ engine.SourceLocation) (string, error) {
		return "engine:" + expression, nil
	}
	s, _ := newInlineSession(t, eng, nil)

	got := s.ResolveExpression("x", engine.SourceLocation{File: "main.go", Line: 1})
	if got != "engine:x" {
		t.Errorf("ResolveExpression() = %q, want the engine's answer", got)
	}
	if eng.CallCount("resolve-expression") != 1 {
		t.Errorf("engine resolve calls = %d, want 1", eng.CallCount("resolve-expression"))
	}
}

type namedEvaluator struct{ name string }

func (e namedEvaluator) Name() string { return e.name }

func (e namedEvaluator) Evaluate(context.Context, string, *evaluator.Frame) (string, error) {
	return e.name, nil
}

func TestEvaluatorForFrame(t *testing.T) {
	eng := enginetest.New()
	hookCalls := 0
	s, _ := newInlineSession(t, eng, func(cfg *Config) {
		cfg.GetExpressionEvaluator = func(ext string) evaluator.Evaluator {
			hookCalls++
			if ext == "lua" {
				return namedEvaluator{name: "hooked-lua"}
			}
			return nil
		}
	})

	luaFrame := engine.StackFrame{Location: engine.SourceLocation{File: "script.lua", Line: 2}}
	if got := s.EvaluatorForFrame(luaFrame).Name(); got != "hooked-lua" {
		t.Errorf("lua frame evaluator = %q", got)
	}
	// Lookups are memoized per extension.
	s.EvaluatorForFrame(luaFrame)
	if hookCalls != 1 {
		t.Errorf("hook invocations = %d, want 1", hookCalls)
	}

	// The hook declined go; the registry default applies.
	goFrame := engine.StackFrame{Location: engine.SourceLocation{File: "main.go", Line: 2}}
	if got := s.EvaluatorForFrame(goFrame).Name(); got != "default" {
		t.Errorf("go frame evaluator = %q, want default", got)
	}

	// No extension gets the default evaluator.
	bare := engine.StackFrame{Location: engine.SourceLocation{File: "Makefile"}}
	if got := s.EvaluatorForFrame(bare).Name(); got != "default" {
		t.Errorf("extensionless frame evaluator = %q, want default", got)
	}
}

func TestRegisterEvaluator(t *testing.T) {
	eng := enginetest.New()
	s, _ := newInlineSession(t, eng, nil)

	frame := engine.StackFrame{Location: engine.SourceLocation{File: "query.sql", Line: 1}}
	if got := s.EvaluatorForFrame(frame).Name(); got != "default" {
		t.Fatalf("pre-registration evaluator = %q", got)
	}

	s.RegisterEvaluator("sql", namedEvaluator{name: "sql"})
	if got := s.EvaluatorForFrame(frame).Name(); got != "sql" {
		t.Errorf("post-registration evaluator = %q, want sql", got)
	}
}
