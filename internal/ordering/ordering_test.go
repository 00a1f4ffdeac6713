package ordering

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/aipq/internal/filter"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Ordering
		text  string
	}{
		{"", nil, ""},
		{" , ,", nil, ""},
		{"age", Ordering{{Name: "age"}}, "age asc"},
		{"displayName desc, age", Ordering{{"displayName", Descending}, {"age", Ascending}}, "displayName desc, age asc"},
		{"user.age DESC ,id   Asc", Ordering{{"user.age", Descending}, {"id", Ascending}}, "user.age desc, id asc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, got.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad direction", "age up"},
		{"too many words", "age desc please"},
		{"invalid name", "1age"},
		{"keyword name", "AND desc"},
		{"punctuation", "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var syn *SyntaxError
			require.True(t, errors.As(err, &syn), "got %v", err)
		})
	}

	_, err := Parse("age, name desc, age desc")
	assert.True(t, errors.Is(err, ErrDuplicateField))
}

func TestOrdering_ContainsAppend(t *testing.T) {
	o, err := Parse("a, b desc")
	require.NoError(t, err)

	assert.True(t, o.Contains("b"))
	assert.False(t, o.Contains("id"))

	extended := o.Append(Term{Name: "id", Direction: Descending})
	assert.Equal(t, "a asc, b desc, id desc", extended.String())
	assert.Len(t, o, 2)
	assert.Equal(t, []string{"a", "b", "id"}, extended.Names())
}

func TestOrdering_Evaluate(t *testing.T) {
	o, err := Parse("displayName desc, age")
	require.NoError(t, err)

	alice30 := filter.MapResolver{"displayName": "alice", "age": 30}
	bob20 := filter.MapResolver{"displayName": "bob", "age": 20}
	bob25 := filter.MapResolver{"displayName": "bob", "age": 25}
	nameless := filter.MapResolver{"age": 1}

	c, err := o.Evaluate(bob20, alice30)
	require.NoError(t, err)
	assert.Equal(t, -1, c, "desc puts bob first")

	c, err = o.Evaluate(bob20, bob25)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = o.Evaluate(bob25, bob25)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	// absent sorts first ascending, so last when descending
	c, err = o.Evaluate(nameless, alice30)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = o.Evaluate(filter.MapResolver{"displayName": 1}, alice30)
	require.Error(t, err)
}

func TestOrdering_EvaluateIsTotalPreorder(t *testing.T) {
	o := Ordering{{Name: "a", Direction: Descending}, {Name: "b"}}
	genRecord := rapid.Custom(func(t *rapid.T) filter.MapResolver {
		r := filter.MapResolver{"b": rapid.IntRange(0, 3).Draw(t, "b")}
		if rapid.Bool().Draw(t, "hasA") {
			r["a"] = rapid.IntRange(0, 3).Draw(t, "a")
		}
		return r
	})

	rapid.Check(t, func(t *rapid.T) {
		recs := rapid.SliceOfN(genRecord, 3, 3).Draw(t, "records")
		x, y, z := recs[0], recs[1], recs[2]

		xy, err := o.Evaluate(x, y)
		require.NoError(t, err)
		yx, err := o.Evaluate(y, x)
		require.NoError(t, err)
		assert.Equal(t, xy, -yx, "antisymmetric")

		yz, _ := o.Evaluate(y, z)
		xz, _ := o.Evaluate(x, z)
		if xy <= 0 && yz <= 0 {
			assert.LessOrEqual(t, xz, 0, "transitive")
		}
	})
}

func TestOrdering_EvaluateSorts(t *testing.T) {
	o, err := Parse("age desc")
	require.NoError(t, err)

	recs := []filter.MapResolver{{"age": 1}, {"age": 3}, {"age": 2}}
	sort.SliceStable(recs, func(i, j int) bool {
		c, _ := o.Evaluate(recs[i], recs[j])
		return c < 0
	})

	assert.Equal(t, []filter.MapResolver{{"age": 3}, {"age": 2}, {"age": 1}}, recs)
}
