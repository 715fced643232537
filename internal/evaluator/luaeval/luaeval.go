// Package luaeval evaluates expressions with an embedded Lua interpreter.
//
// It serves two roles: the registered evaluator for frames in Lua source,
// and a host-side fallback for breakpoint condition and trace expressions
// when the engine declines to evaluate them. Frame locals are bound as Lua
// globals before the expression runs; values that parse as numbers are bound
// numerically, values that parse as booleans as booleans, everything else as
// strings.
package luaeval

import (
	"context"
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/debugstorm/internal/evaluator"
)

// Evaluator evaluates expressions in a sandboxed Lua state.
type Evaluator struct{}

// New returns a Lua evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Name implements evaluator.Evaluator.
func (e *Evaluator) Name() string { return "lua" }

// Evaluate implements evaluator.Evaluator. Each call runs in a fresh state;
// nothing leaks between evaluations.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, frame *evaluator.Frame) (string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Base, string, math, and table libraries only. No os, io, or package loading:
	// expressions must not touch the host.
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}

	if ctx != nil {
		luaCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		L.SetContext(luaCtx)
	}

	if frame != nil {
		for name, value := range frame.Locals {
			L.SetGlobal(name, toLuaValue(value))
		}
	}

	if err := L.DoString("return " + expression); err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expression, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return renderValue(ret), nil
}

// toLuaValue converts a rendered local value to the most specific Lua type.
func toLuaValue(value string) lua.LValue {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return lua.LNumber(n)
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return lua.LBool(b)
	}
	return lua.LString(value)
}

// renderValue renders a Lua value the way a debugger pad would display it.
func renderValue(lv lua.LValue) string {
	switch v := lv.(type) {
	case *lua.LNilType:
		return "nil"
	case lua.LBool:
		return strconv.FormatBool(bool(v))
	case lua.LNumber:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case lua.LString:
		return string(v)
	default:
		return lv.String()
	}
}

var _ evaluator.Evaluator = (*Evaluator)(nil)
