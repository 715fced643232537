package luaeval

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/debugstorm/internal/evaluator"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	e := New()
	got, err := e.Evaluate(context.Background(), "6 * 7", nil)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got != "42" {
		t.Errorf("Evaluate() = %q, want 42", got)
	}
}

func TestEvaluate_FrameLocals(t *testing.T) {
	e := New()
	frame := &evaluator.Frame{
		Function: "main.main",
		File:     "script.lua",
		Line:     10,
		Locals: map[string]string{
			"count": "4",
			"name":  "target",
			"ok":    "true",
		},
	}

	tests := []struct {
		expr string
		want string
	}{
		{"count + 1", "5"},
		{"name .. '!'", "target!"},
		{"ok and 'yes' or 'no'", "yes"},
		{"string.upper(name)", "TARGET"},
	}
	for _, tt := range tests {
		got, err := e.Evaluate(context.Background(), tt.expr, frame)
		if err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluate_Error(t *testing.T) {
	e := New()
	_, err := e.Evaluate(context.Background(), "this is not lua", nil)
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !strings.Contains(err.Error(), "this is not lua") {
		t.Errorf("error %q should name the expression", err)
	}
}

func TestEvaluate_NoHostAccess(t *testing.T) {
	e := New()
	if _, err := e.Evaluate(context.Background(), "os.exit(1)", nil); err == nil {
		t.Error("os library should not be available to expressions")
	}
	if _, err := e.Evaluate(context.Background(), "io.open('/etc/passwd')", nil); err == nil {
		t.Error("io library should not be available to expressions")
	}
}

func TestEvaluate_Isolation(t *testing.T) {
	e := New()
	if _, err := e.Evaluate(context.Background(), "(function() leaked = 1 end)() or leaked", nil); err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	got, err := e.Evaluate(context.Background(), "leaked == nil", nil)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got != "true" {
		t.Error("state leaked between evaluations")
	}
}

func TestEvaluate_Nil(t *testing.T) {
	e := New()
	got, err := e.Evaluate(context.Background(), "nil", nil)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got != "nil" {
		t.Errorf("Evaluate(nil) = %q, want nil", got)
	}
}
