package commands

import (
	"reflect"
	"testing"
)

func TestBindPrecedence(t *testing.T) {
	params := []Param{Arg("text"), Optional("count", 3), Arg("mode")}

	cases := []struct {
		name string
		args Args
		want []Value
	}{
		{
			name: "positional",
			args: Positional("hi", 5, "fast"),
			want: []Value{{"text", "hi", true}, {"count", 5, true}, {"mode", "fast", true}},
		},
		{
			name: "named wins over position",
			args: Args{Positional: []any{"hi", 5}, Named: map[string]any{"count": 9}},
			want: []Value{{"text", "hi", true}, {"count", 9, true}, {"mode", nil, false}},
		},
		{
			name: "default then absent",
			args: Positional("only"),
			want: []Value{{"text", "only", true}, {"count", 3, true}, {"mode", nil, false}},
		},
		{
			name: "empty args bind defaults",
			args: Args{},
			want: []Value{{"text", nil, false}, {"count", 3, true}, {"mode", nil, false}},
		},
		{
			name: "nil values are missing",
			args: Args{Positional: []any{nil, nil}, Named: map[string]any{"text": nil}},
			want: []Value{{"text", nil, false}, {"count", 3, true}, {"mode", nil, false}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bind(params, tc.args)
			if got.Len() != len(params) {
				t.Fatalf("len = %d, want %d", got.Len(), len(params))
			}
			if !reflect.DeepEqual(got.Values(), tc.want) {
				t.Fatalf("values = %+v, want %+v", got.Values(), tc.want)
			}
		})
	}
}

func TestBindIsIdempotent(t *testing.T) {
	params := []Param{Arg("a"), Optional("b", "x")}
	args := Args{Positional: []any{"1"}, Named: map[string]any{"b": "2"}}
	first := Bind(params, args)
	second := Bind(params, args)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("binding differs: %+v vs %+v", first, second)
	}
	if args.Named["b"] != "2" || len(args.Positional) != 1 {
		t.Fatalf("args mutated: %+v", args)
	}
}

func TestBindWithoutParamsPassesRawArgs(t *testing.T) {
	args := Positional("hello", "world")
	got := Bind(nil, args)
	if got.Len() != 0 {
		t.Fatalf("len = %d, want 0", got.Len())
	}
	if !reflect.DeepEqual(got.Raw(), args) {
		t.Fatalf("raw = %+v, want %+v", got.Raw(), args)
	}
	if !Bind(nil, Args{}).Raw().Empty() {
		t.Fatal("expected empty raw args")
	}
}

func TestBoundAccessors(t *testing.T) {
	b := Bind([]Param{Arg("name"), Optional("n", "7"), Arg("missing")}, Positional("bob"))
	if got := b.String("name"); got != "bob" {
		t.Fatalf("String(name) = %q", got)
	}
	if n, ok := b.Int("n"); !ok || n != 7 {
		t.Fatalf("Int(n) = %d, %v", n, ok)
	}
	if b.Has("missing") {
		t.Fatal("missing should not be present")
	}
	if got := b.String("missing"); got != "" {
		t.Fatalf("String(missing) = %q", got)
	}
	if _, ok := b.Get("unknown"); ok {
		t.Fatal("unknown parameter should not resolve")
	}
}

func TestParseArgs(t *testing.T) {
	got := ParseArgs("  alpha beta=2 gamma  ")
	if got.Raw != "alpha beta=2 gamma" {
		t.Fatalf("raw = %q", got.Raw)
	}
	if !reflect.DeepEqual(got.Positional, []any{"alpha", "gamma"}) {
		t.Fatalf("positional = %v", got.Positional)
	}
	if got.Named["beta"] != "2" {
		t.Fatalf("named = %v", got.Named)
	}
	if !ParseArgs("   ").Empty() {
		t.Fatal("blank text should parse to empty args")
	}
}
