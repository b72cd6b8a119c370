// Package modifiers holds value-shaping template filters: affixes and
// typography, Russian numerals and name declension, money and dates.
//
// A modifier is a plain Go function taking the filtered value first:
//
//	{{ odf_value(fio | declension("дательный", "ф и.о.")) }}
//
// Wrap adapts such functions to the engine filter signature. Modifiers
// whose output depends on the language of the document are Localized and
// receive the render locale.
package modifiers

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Filter is the engine-side form of a modifier.
type Filter = func(in any, args ...any) (any, error)

// LocalizedFilter is a modifier that also receives the render locale.
type LocalizedFilter = func(tag language.Tag, in any, args ...any) (any, error)

// ModifierMeta registers a modifier function. With fewer than Count
// arguments the filter returns its input unchanged.
type ModifierMeta struct {
	Fn    any
	Count int
}

// Names stay clear of the Jinja builtins (default, replace, truncate,
// upper, lower ...): templates get those anyway.
var builtins = map[string]ModifierMeta{
	"prefix":       {Fn: Prefix, Count: 1},
	"uniq_prefix":  {Fn: UniqPrefix, Count: 1},
	"postfix":      {Fn: Postfix, Count: 1},
	"uniq_postfix": {Fn: UniqPostfix, Count: 1},
	"filled":       {Fn: Filled, Count: 1},
	"word_reverse": {Fn: WordReverse},

	"nowrap":   {Fn: Nowrap},
	"compact":  {Fn: Compact},
	"abbr":     {Fn: Abbr},
	"ru_phone": {Fn: Phone},

	"numeral":   {Fn: Numeral},
	"sign":      {Fn: Sign},
	"pad_left":  {Fn: PadLeft, Count: 2},
	"pad_right": {Fn: PadRight, Count: 2},
	"roman":     {Fn: Roman},

	"decl":       {Fn: Declension},
	"declension": {Fn: Declension},
}

var localized = map[string]func(tag language.Tag, in any, args ...string) string{
	"plural":      Plural,
	"money":       Money,
	"date_format": DateFormat,
}

// Filters returns the builtin modifiers with extra merged on top.
func Filters(extra map[string]ModifierMeta) map[string]Filter {
	out := make(map[string]Filter, len(builtins)+len(extra))
	for name, m := range builtins {
		out[name] = Wrap(m.Fn, m.Count)
	}
	for name, m := range extra {
		out[name] = Wrap(m.Fn, m.Count)
	}
	return out
}

// Localized returns the locale-dependent modifiers.
func Localized() map[string]LocalizedFilter {
	out := make(map[string]LocalizedFilter, len(localized))
	for name, fn := range localized {
		out[name] = func(tag language.Tag, in any, args ...any) (any, error) {
			opts := make([]string, len(args))
			for i, a := range args {
				opts[i] = str(a)
			}
			return fn(tag, in, opts...), nil
		}
	}
	return out
}

// ContextFuncs returns modifiers that need the render data. Templates call
// them as functions: {{ odf_value(concat(org, "address", ", ")) }}
func ContextFuncs(data map[string]any) map[string]func(args ...any) (any, error) {
	return map[string]func(args ...any) (any, error){
		"concat": func(args ...any) (any, error) {
			if len(args) == 0 {
				return "", nil
			}
			parts := make([]string, len(args)-1)
			for i, a := range args[1:] {
				parts[i] = str(a)
			}
			return Concat(data, str(args[0]), parts...), nil
		},
	}
}

// Wrap adapts fn to a Filter. fn receives the filtered value, then the
// filter arguments converted to its parameter types; surplus arguments
// are dropped. fn returns a value, optionally followed by an error.
func Wrap(fn any, required int) Filter {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return func(in any, _ ...any) (any, error) { return in, nil }
	}
	ft := fv.Type()
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}

	return func(in any, args ...any) (any, error) {
		if len(args) < required || len(args)+1 < fixed {
			return in, nil
		}
		all := append([]any{in}, args...)
		call := make([]reflect.Value, 0, len(all))
		for i := 0; i < fixed; i++ {
			call = append(call, coerce(all[i], ft.In(i)))
		}
		if ft.IsVariadic() {
			elem := ft.In(fixed).Elem()
			for _, a := range all[fixed:] {
				call = append(call, coerce(a, elem))
			}
		}
		return results(fv.Call(call))
	}
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}

// coerce converts v to t, falling back to the zero value of t.
func coerce(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(str(v)).Convert(t)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f, ok := toFloat(v); ok {
			out := reflect.New(t).Elem()
			out.SetInt(int64(f))
			return out
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := toFloat(v); ok {
			out := reflect.New(t).Elem()
			out.SetFloat(f)
			return out
		}
	default:
		if rv.Type().ConvertibleTo(t) {
			return rv.Convert(t)
		}
	}
	return reflect.Zero(t)
}

// str is the text form modifiers work on: nil is empty, whole floats drop
// their fraction.
func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
