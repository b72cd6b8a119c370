// Package engine is the contract between the renderer and the text template
// engine that evaluates the flattened document, plus a Jinja implementation
// on top of gonja.
package engine

import (
	"context"
	"io"
)

// Filter is a value filter, used in templates as {{ x | name(args) }}.
type Filter = func(in any, args ...any) (any, error)

// ScopedFilter is a value filter that also sees the Scope of the evaluation
// it runs in. Filters that depend on per-call settings, such as the output
// locale, are registered this way.
type ScopedFilter = func(scope Scope, in any, args ...any) (any, error)

// Func is a callable put into the evaluation scope for one call only.
type Func = func(args ...any) (any, error)

// Scope holds per-call settings. Templates cannot read it; scoped filters
// receive it.
type Scope map[string]any

// Compiled is a template ready for evaluation.
type Compiled interface {
	Name() string
}

// Context is what one evaluation sees: data values plus per-call functions.
type Context struct {
	Values map[string]any
	Funcs  map[string]Func
	Scope  Scope
}

// Engine compiles flat template text and evaluates it into w.
//
// A Compiled value must be safe to evaluate from several goroutines at once.
type Engine interface {
	Compile(name, source string) (Compiled, error)
	Evaluate(ctx context.Context, tpl Compiled, data Context, w io.Writer) error
}
