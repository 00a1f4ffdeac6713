package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/value"
)

func record() MapResolver {
	return MapResolver{
		"user": map[string]any{
			"id":          "42",
			"displayName": "test",
			"age":         30,
		},
		"task": map[string]any{
			"id":        "t1",
			"content":   "test",
			"deleted":   true,
			"tags":      []any{"a", "b", "c"},
			"createdAt": "2024-03-01T10:00:00Z",
			"score":     2.5,
		},
	}
}

func TestEvaluator_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"empty", "", true},
		{"number compare", "user.age >= 18", true},
		{"string contains", `user.id:"4"`, true},
		{"string not contained", `user.id:"7"`, false},
		{"bool equality", "task.deleted = true", true},
		{"global bool", "task.deleted", true},
		{"negated composite", "NOT (task.deleted = false)", true},
		{"minus negation", "-task.deleted", false},
		{"field reference", "task.content = user.displayName", true},
		{"repeated all of", `task.tags:("a" "b")`, true},
		{"repeated all of missing", `task.tags:("a" "z")`, false},
		{"repeated any of", `task.tags:("d" OR "a")`, true},
		{"repeated member", `task.tags:"c"`, true},
		{"repeated partial string is not member", `task.tags:"ab"`, false},
		{"presence", "task.tags:*", true},
		{"absent presence", "task.missing:*", false},
		{"absent comparison", "task.missing = 1", false},
		{"absent not equal", "task.missing != 1", false},
		{"int float compare", "task.score > 2", true},
		{"timestamp string", `task.createdAt > "2024-01-01T00:00:00Z"`, true},
		{"or short circuit", "user.age < 18 OR task.deleted", true},
		{"function", `regex(task.content, "^te")`, true},
		{"function startsWith", `startsWith(user.displayName, "x")`, false},
		{
			"original composite",
			`user.age >= 18 AND user.id:"4" AND NOT (task.deleted = false) AND task.content = user.displayName AND task.tags:("a" "b") AND task.tags:("d" OR "a")`,
			true,
		},
	}

	e := NewEvaluator(Builtins())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Matches(mustParse(t, tt.filter), record())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_AgeScenario(t *testing.T) {
	f := mustParse(t, `user.age >= 18 AND user.id:"4"`)
	e := NewEvaluator(nil)

	adult, err := e.Matches(f, MapResolver{"user": map[string]any{"age": 30, "id": "42"}})
	require.NoError(t, err)
	assert.True(t, adult)

	minor, err := e.Matches(f, MapResolver{"user": map[string]any{"age": 16, "id": "42"}})
	require.NoError(t, err)
	assert.False(t, minor)
}

func TestEvaluator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   error
	}{
		{"kind mismatch", `user.age = "thirty"`, ErrTypeMismatch},
		{"ordering repeated", `task.tags < "a"`, ErrTypeMismatch},
		{"wildcard outside has", "user.age = *", ErrTypeMismatch},
		{"unknown function", "lower(user.id)", ErrUnsupportedFunction},
		{"non-bool operand", "user.age = 30 AND regex(user.id)", ErrTypeMismatch},
		{"bad pattern", `regex(user.id, "(")`, ErrInvalidArgument},
	}

	e := NewEvaluator(Builtins())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Matches(mustParse(t, tt.filter), record())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEvaluator_GlobalLiteral(t *testing.T) {
	e := NewEvaluator(nil)

	v, err := e.Evaluate(mustParse(t, "42"), nil)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)

	v, err = e.Evaluate(mustParse(t, `""`), nil)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), v)
}

func TestEvaluator_CustomFunc(t *testing.T) {
	fns := Builtins()
	fns["double"] = Func{
		Schema: schema.FunctionSchema{Args: []value.Type{value.TypeInteger}, Returns: value.TypeInteger},
		Call: func(args []value.Value) (value.Value, error) {
			n, ok := args[0].AsInt()
			if !ok {
				return value.Value{}, ErrTypeMismatch
			}
			return value.Int(2 * n), nil
		},
	}
	e := NewEvaluator(fns)

	// A call on the right side of a restriction is parsed as an Arg.
	got, err := e.Matches(mustParse(t, "double(user.age) = double(30)"), record())
	require.NoError(t, err)
	assert.True(t, got)

	got, err = e.Matches(mustParse(t, "user.age < double(user.age)"), record())
	require.NoError(t, err)
	assert.True(t, got)

	s := schema.New()
	fns.Register(s)
	assert.Contains(t, s.Functions, "double")
	assert.Equal(t, fns["regex"].Schema, fns.Schemas()["regex"])
}

func TestMapResolver(t *testing.T) {
	r := MapResolver{
		"flat.key": "x",
		"a":        map[string]any{"b": map[string]any{"c": 1}},
	}

	v, ok := r.Resolve("flat.key")
	require.True(t, ok)
	assert.Equal(t, value.String("x"), v)

	v, ok = r.Resolve("a.b.c")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)

	_, ok = r.Resolve("a.b")
	assert.False(t, ok, "maps are not values")
	_, ok = r.Resolve("a.x.c")
	assert.False(t, ok)
}

// Evaluating the canonical text gives the same answer as the original tree.
func TestEvaluator_CanonicalTextAgrees(t *testing.T) {
	e := NewEvaluator(nil)
	rapid.Check(t, func(t *rapid.T) {
		f := &Filter{Root: genExpr(t, 2)}
		r := MapResolver{
			"a":    rapid.Int64Range(-5, 5).Draw(t, "a"),
			"b":    map[string]any{"c": rapid.SampledFrom([]string{"", "x", "xy"}).Draw(t, "bc")},
			"user": map[string]any{"age": rapid.Float64Range(-5, 5).Draw(t, "age")},
		}
		parsed, err := Parse(f.String(), WithMaxDepth(100))
		if err != nil {
			t.Fatalf("Parse(%q): %v", f.String(), err)
		}

		want, wantErr := e.Evaluate(f, r)
		got, gotErr := e.Evaluate(parsed, r)
		if (wantErr == nil) != (gotErr == nil) {
			t.Fatalf("error mismatch for %q: %v vs %v", f.String(), wantErr, gotErr)
		}
		if wantErr == nil && !want.Equal(got) {
			t.Fatalf("value mismatch for %q: %v vs %v", f.String(), want, got)
		}
	})
}
