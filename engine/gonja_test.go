package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func render(t *testing.T, g *Gonja, src string, data Context) string {
	t.Helper()
	tpl, err := g.Compile("t", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var sb strings.Builder
	if err := g.Evaluate(context.Background(), tpl, data, &sb); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return sb.String()
}

func TestGonjaLoopKeepsMarkup(t *testing.T) {
	g := NewGonja()
	src := `<t>{% for r in rows %}<row>{{ r }}</row>{% endfor %}</t>`
	got := render(t, g, src, Context{Values: map[string]any{"rows": []any{"a", "b", "c"}}})
	want := `<t><row>a</row><row>b</row><row>c</row></t>`
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestGonjaNoAutoEscape(t *testing.T) {
	g := NewGonja()
	got := render(t, g, `{{ x }}`, Context{Values: map[string]any{"x": "<b/>"}})
	if got != "<b/>" {
		t.Fatalf("got %q", got)
	}
}

func TestGonjaFiltersAndFuncs(t *testing.T) {
	g := NewGonja(WithFilters(map[string]Filter{
		"shout": func(in any, args ...any) (any, error) {
			s, _ := in.(string)
			return strings.ToUpper(s) + "!", nil
		},
	}))
	data := Context{
		Values: map[string]any{"name": "bob"},
		Funcs: map[string]Func{
			"wrap": func(args ...any) (any, error) {
				s, _ := args[0].(string)
				return "[" + s + "]", nil
			},
		},
	}
	got := render(t, g, `{{ wrap(name | shout) }}`, data)
	if got != "[BOB!]" {
		t.Fatalf("got %q", got)
	}
}

func TestGonjaCompileError(t *testing.T) {
	g := NewGonja()
	if _, err := g.Compile("bad", `{% for x in %}`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestGonjaFuncErrorFailsEvaluation(t *testing.T) {
	g := NewGonja()
	tpl, err := g.Compile("t", `{{ boom() }}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	data := Context{Funcs: map[string]Func{
		"boom": func(args ...any) (any, error) { return nil, errors.New("boom") },
	}}
	var sb strings.Builder
	if err := g.Evaluate(context.Background(), tpl, data, &sb); err == nil {
		t.Fatal("expected evaluation error")
	}
}

func TestGonjaCanceled(t *testing.T) {
	g := NewGonja()
	tpl, err := g.Compile("t", `x`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sb strings.Builder
	if err := g.Evaluate(ctx, tpl, Context{}, &sb); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGonjaScopedFilterSeesScope(t *testing.T) {
	g := NewGonja(WithScopedFilters(map[string]ScopedFilter{
		"greet": func(scope Scope, in any, args ...any) (any, error) {
			lang, _ := scope["lang"].(string)
			if lang == "ru" {
				return "Привет, " + in.(string), nil
			}
			return "Hello, " + in.(string), nil
		},
	}))
	src := `{% for n in names %}{{ n | greet }};{% endfor %}`
	values := map[string]any{"names": []any{"Ann", "Bob"}}

	if got := render(t, g, src, Context{Values: values, Scope: Scope{"lang": "ru"}}); got != "Привет, Ann;Привет, Bob;" {
		t.Errorf("ru: %q", got)
	}
	if got := render(t, g, src, Context{Values: values}); got != "Hello, Ann;Hello, Bob;" {
		t.Errorf("no scope: %q", got)
	}
}

func TestGonjaEnginesKeepOwnFilters(t *testing.T) {
	named := func(tag string) Filter {
		return func(in any, args ...any) (any, error) { return tag, nil }
	}
	a := NewGonja(WithFilters(map[string]Filter{"which": named("a")}))
	b := NewGonja(WithFilters(map[string]Filter{"which": named("b")}))

	if got := render(t, a, `{{ 1 | which }}`, Context{}); got != "a" {
		t.Errorf("engine a: %q", got)
	}
	if got := render(t, b, `{{ 1 | which }}`, Context{}); got != "b" {
		t.Errorf("engine b: %q", got)
	}
	if got := render(t, NewGonja(), `{{ "x" | upper }}`, Context{}); got != "X" {
		t.Errorf("builtins lost: %q", got)
	}
}
