package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// Param declares one parameter of a command handler. Its position is its index in Params().
type Param struct {
	Name       string
	Default    any
	HasDefault bool
}

// Arg declares a parameter without a default; it binds to nil when no value is supplied.
func Arg(name string) Param {
	return Param{Name: name}
}

// Optional declares a parameter falling back to def.
func Optional(name string, def any) Param {
	return Param{Name: name, Default: def, HasDefault: true}
}

// Args is the raw argument collection handed to a command.
// Values may be addressed by position, by name, or both.
type Args struct {
	Positional []any
	Named      map[string]any
	Raw        string
}

// Positional builds an argument set from ordered values.
func Positional(values ...any) Args {
	return Args{Positional: values}
}

// Empty reports whether no values are present.
func (a Args) Empty() bool {
	return len(a.Positional) == 0 && len(a.Named) == 0 && a.Raw == ""
}

// At returns the positional value at i. Nil values count as missing.
func (a Args) At(i int) (any, bool) {
	if i < 0 || i >= len(a.Positional) {
		return nil, false
	}
	v := a.Positional[i]
	return v, v != nil
}

// Lookup returns the named value. Nil values count as missing.
func (a Args) Lookup(name string) (any, bool) {
	if a.Named == nil {
		return nil, false
	}
	v, ok := a.Named[name]
	return v, ok && v != nil
}

// ParseArgs splits trailing command text into arguments.
// Whitespace-separated tokens are positional; key=value tokens are named instead of positional.
func ParseArgs(text string) Args {
	text = strings.TrimSpace(text)
	args := Args{Raw: text}
	if text == "" {
		return args
	}
	for _, tok := range strings.Fields(text) {
		if key, val, ok := strings.Cut(tok, "="); ok && key != "" {
			if args.Named == nil {
				args.Named = make(map[string]any)
			}
			args.Named[key] = val
			continue
		}
		args.Positional = append(args.Positional, tok)
	}
	return args
}

// Value is one resolved parameter.
type Value struct {
	Name  string
	Value any
	// Present is false when neither an argument nor a default was available.
	Present bool
}

// Bound is the resolved parameter set passed to Handle.
type Bound struct {
	values []Value
	raw    Args
}

// Len returns the number of resolved parameters.
func (b Bound) Len() int { return len(b.values) }

// Values returns the resolved parameters in declaration order.
func (b Bound) Values() []Value {
	return append([]Value(nil), b.values...)
}

// Raw returns the unbound argument collection.
func (b Bound) Raw() Args { return b.raw }

// Get returns the value bound to name and whether it was resolved.
func (b Bound) Get(name string) (any, bool) {
	for _, v := range b.values {
		if v.Name == name {
			return v.Value, v.Present
		}
	}
	return nil, false
}

// Has reports whether name resolved to a value.
func (b Bound) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// String returns the value bound to name formatted as text, or "".
func (b Bound) String(name string) string {
	v, ok := b.Get(name)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value bound to name as an int.
func (b Bound) Int(name string) (int, bool) {
	v, ok := b.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Bind resolves args onto params: a named value wins, then the value at the
// parameter position, then the declared default, else an absent nil.
// Without params the raw collection is passed through unchanged.
func Bind(params []Param, args Args) Bound {
	if len(params) == 0 {
		return Bound{raw: args}
	}
	values := make([]Value, len(params))
	for i, p := range params {
		v := Value{Name: p.Name}
		if val, ok := args.Lookup(p.Name); ok {
			v.Value, v.Present = val, true
		} else if val, ok := args.At(i); ok {
			v.Value, v.Present = val, true
		} else if p.HasDefault {
			v.Value, v.Present = p.Default, true
		}
		values[i] = v
	}
	return Bound{values: values, raw: args}
}
