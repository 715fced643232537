package session

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/evaluator"
)

// resolverKey keys the resolver cache by expression and location.
type resolverKey struct {
	expression string
	location   string
}

// ResolveExpression resolves an identifier at a source location to its fully
// qualified form, memoizing per (expression, location). A declined or failed
// resolution returns the original expression; failures are logged and never
// cached, so the resolver is retried on the next call.
func (s *Session) ResolveExpression(expression string, location engine.SourceLocation) string {
	key := resolverKey{expression: expression, location: location.String()}

	s.rmu.Lock()
	if cached, ok := s.resolved[key]; ok {
		s.rmu.Unlock()
		if cached == nil {
			return expression
		}
		return *cached
	}
	s.rmu.Unlock()

	resolvedVal, err := s.resolveRaw(expression, location)
	if err != nil {
		s.WriteDebuggerOutput(true, fmt.Sprintf("Could not resolve expression %q: %v\n", expression, err))
		return expression
	}

	s.rmu.Lock()
	if resolvedVal == "" {
		s.resolved[key] = nil
		s.rmu.Unlock()
		return expression
	}
	s.resolved[key] = &resolvedVal
	s.rmu.Unlock()
	return resolvedVal
}

// resolveRaw invokes the resolver hook, falling back to the engine when no
// hook is configured. Panics are converted to errors.
func (s *Session) resolveRaw(expression string, location engine.SourceLocation) (resolvedVal string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panic: %v", r)
		}
	}()
	if h := s.cfg.TypeResolverHandler; h != nil {
		return h(expression, location)
	}
	return s.eng.OnResolveExpression(expression, location)
}

// RegisterEvaluator binds an expression evaluator to a file extension.
func (s *Session) RegisterEvaluator(ext string, ev evaluator.Evaluator) {
	s.evaluators.Register(ext, ev)
	s.rmu.Lock()
	s.evalByExt = make(map[string]evaluator.Evaluator)
	s.rmu.Unlock()
}

// EvaluatorForFrame returns the expression evaluator for a stack frame,
// selected by the frame's source file extension. Frames with no extension
// get the default evaluator.
func (s *Session) EvaluatorForFrame(frame engine.StackFrame) evaluator.Evaluator {
	return s.evaluatorForExtension(frame.Location.FileExtension())
}

// evaluatorForExtension memoizes evaluator lookups per extension. The
// configured hook wins; the registry is the fallback.
func (s *Session) evaluatorForExtension(ext string) evaluator.Evaluator {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if ev, ok := s.evalByExt[ext]; ok {
		return ev
	}
	var ev evaluator.Evaluator
	if s.cfg.GetExpressionEvaluator != nil {
		ev = s.cfg.GetExpressionEvaluator(ext)
	}
	if ev == nil {
		ev = s.evaluators.ForExtension(ext)
	}
	s.evalByExt[ext] = ev
	return ev
}

// fileExtension returns the lowercase extension of path without the dot.
func fileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}
