package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nikolalohinski/gonja/v2/builtins"
	"github.com/nikolalohinski/gonja/v2/config"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/nikolalohinski/gonja/v2/loaders"
)

// Option configures a Gonja engine.
type Option func(*Gonja)

// WithFilters registers value filters on top of the Jinja builtins. Later
// registrations win on name clashes.
func WithFilters(filters map[string]Filter) Option {
	return func(g *Gonja) {
		for name, f := range filters {
			g.filters[name] = f
		}
	}
}

// WithScopedFilters registers filters that receive the Scope of each
// evaluation.
func WithScopedFilters(filters map[string]ScopedFilter) Option {
	return func(g *Gonja) {
		for name, f := range filters {
			g.scoped[name] = f
		}
	}
}

// WithStrictUndefined makes undefined variables an evaluation error.
func WithStrictUndefined(strict bool) Option {
	return func(g *Gonja) { g.cfg.StrictUndefined = strict }
}

// Gonja evaluates Jinja templates ({{ }} and {% %}).
type Gonja struct {
	cfg     *config.Config
	env     *exec.Environment
	filters map[string]Filter
	scoped  map[string]ScopedFilter
}

// scopeKey is where Evaluate puts the Scope. The name is not a valid
// template identifier start, so templates cannot reach it.
const scopeKey = "\x00scope"

// NewGonja builds an engine. Whitespace around blocks is kept as is: the
// input is XML and blocks sit between elements.
func NewGonja(opts ...Option) *Gonja {
	g := &Gonja{
		cfg: &config.Config{
			BlockStartString:    "{%",
			BlockEndString:      "%}",
			VariableStartString: "{{",
			VariableEndString:   "}}",
			CommentStartString:  "{#",
			CommentEndString:    "#}",
			AutoEscape:          false,
			StrictUndefined:     false,
			TrimBlocks:          false,
			LeftStripBlocks:     false,
		},
		filters: make(map[string]Filter),
		scoped:  make(map[string]ScopedFilter),
	}
	for _, opt := range opts {
		opt(g)
	}

	filterMap := make(map[string]exec.FilterFunction, len(g.filters)+len(g.scoped))
	for name, f := range g.filters {
		filterMap[name] = wrapFilter(f)
	}
	for name, f := range g.scoped {
		filterMap[name] = wrapScopedFilter(f)
	}

	// Update writes into its receiver: start from an empty set so the
	// package-wide builtin set stays untouched by this engine's filters.
	filters := exec.NewFilterSet(map[string]exec.FilterFunction{}).
		Update(builtins.Filters).
		Update(exec.NewFilterSet(filterMap))

	g.env = &exec.Environment{
		Filters:           filters,
		Tests:             builtins.Tests,
		ControlStructures: builtins.ControlStructures,
		Methods:           builtins.Methods,
		Context:           builtins.GlobalFunctions,
	}
	return g
}

type gonjaTemplate struct {
	name string
	tpl  *exec.Template
}

func (t *gonjaTemplate) Name() string { return t.name }

// Compile parses source. The template cannot include or extend others.
func (g *Gonja) Compile(name, source string) (Compiled, error) {
	loader := &memoryLoader{templates: map[string]string{name: source}}
	tpl, err := exec.NewTemplate(name, g.cfg, loader, g.env)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &gonjaTemplate{name: name, tpl: tpl}, nil
}

// Evaluate renders tpl into w through a buffer that is flushed on success.
func (g *Gonja) Evaluate(ctx context.Context, c Compiled, data Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, ok := c.(*gonjaTemplate)
	if !ok {
		return fmt.Errorf("template %s was not compiled by gonja", c.Name())
	}

	values := make(map[string]any, len(data.Values)+len(data.Funcs)+1)
	for k, v := range data.Values {
		values[k] = v
	}
	for name, fn := range data.Funcs {
		values[name] = wrapFunc(fn)
	}
	values[scopeKey] = data.Scope

	bw := bufio.NewWriter(w)
	if err := t.tpl.Execute(bw, exec.NewContext(values)); err != nil {
		return fmt.Errorf("evaluate %s: %w", t.name, err)
	}
	return bw.Flush()
}

func wrapFilter(f Filter) exec.FilterFunction {
	return func(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		var args []any
		if params != nil {
			for _, arg := range params.Args {
				args = append(args, arg.Interface())
			}
		}
		result, err := f(in.Interface(), args...)
		if err != nil {
			return exec.AsValue(err)
		}
		return exec.AsValue(result)
	}
}

func wrapScopedFilter(f ScopedFilter) exec.FilterFunction {
	return func(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		var scope Scope
		if raw, ok := e.Environment.Context.Get(scopeKey); ok {
			scope, _ = raw.(Scope)
		}
		return wrapFilter(func(in any, args ...any) (any, error) {
			return f(scope, in, args...)
		})(e, in, params)
	}
}

func wrapFunc(fn Func) func(*exec.Evaluator, *exec.VarArgs) *exec.Value {
	return func(_ *exec.Evaluator, params *exec.VarArgs) *exec.Value {
		var args []any
		if params != nil {
			for _, arg := range params.Args {
				args = append(args, arg.Interface())
			}
		}
		result, err := fn(args...)
		if err != nil {
			return exec.AsValue(exec.ErrInvalidCall(err))
		}
		return exec.AsValue(result)
	}
}

// memoryLoader serves templates from a map.
type memoryLoader struct {
	templates map[string]string
}

func (l *memoryLoader) Read(path string) (io.Reader, error) {
	src, ok := l.templates[path]
	if !ok {
		return nil, fmt.Errorf("template %q not found", path)
	}
	return strings.NewReader(src), nil
}

func (l *memoryLoader) Resolve(path string) (string, error) {
	if _, ok := l.templates[path]; !ok {
		return "", fmt.Errorf("template %q not found", path)
	}
	return path, nil
}

func (l *memoryLoader) Inherit(string) (loaders.Loader, error) {
	return l, nil
}
