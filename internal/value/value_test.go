package value

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValue_Compare(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"ints", Int(1), Int(2), -1},
		{"int float", Int(3), Float(2.5), 1},
		{"float int equal", Float(4), Int(4), 0},
		{"int above 2^53", Int(1<<53 + 1), Float(1 << 53), 1},
		{"float below int above 2^53", Float(1 << 53), Int(1<<53 + 1), -1},
		{"max int vs 2^63", Int(math.MaxInt64), Float(1 << 63), -1},
		{"min int vs -2^63", Int(math.MinInt64), Float(-(1 << 63)), 0},
		{"negative fraction below", Int(-3), Float(-2.5), -1},
		{"negative fraction above", Int(-2), Float(-2.5), 1},
		{"strings", String("b"), String("a"), 1},
		{"bools", Bool(false), Bool(true), -1},
		{"timestamps", Timestamp(ts), Timestamp(ts.Add(time.Second)), -1},
		{"timestamp vs rfc3339 string", Timestamp(ts), String("2024-01-02T03:04:05Z"), 0},
		{"repeated prefix", Repeated(Int(1)), Repeated(Int(1), Int(2)), -1},
		{"nulls", Null(), Null(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_CompareIncomparable(t *testing.T) {
	pairs := [][2]Value{
		{Int(1), String("1")},
		{Bool(true), Int(1)},
		{Null(), Int(0)},
		{Timestamp(time.Now()), String("yesterday")},
	}
	for _, p := range pairs {
		_, err := p[0].Compare(p[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIncomparable))
		assert.False(t, p[0].Equal(p[1]))
	}
}

func TestValue_Truthy(t *testing.T) {
	assert.True(t, Any().Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Int(-1).Truthy())
	assert.False(t, Int(0).Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, Repeated(String("a")).Truthy())
	assert.False(t, Repeated().Truthy())
	assert.False(t, Null().Truthy())
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(42), "42"},
		{Float(2), "2.0"},
		{Float(0.5), "0.5"},
		{Bool(true), "true"},
		{String("a \"b\"\n"), `"a \"b\"\n"`},
		{Any(), "*"},
		{Timestamp(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), `"2024-05-01T00:00:00Z"`},
		{Repeated(Int(1), String("x")), `[1, "x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValue_FromNative(t *testing.T) {
	v, ok := FromNative(map[string]any{"a": 1})
	assert.False(t, ok)
	assert.True(t, v.IsNull())

	v, ok = FromNative(float64(30))
	require.True(t, ok)
	assert.Equal(t, KindInt, v.Kind())

	v, ok = FromNative([]any{"a", 1.5, true})
	require.True(t, ok)
	require.Len(t, v.Elems(), 3)
	assert.Equal(t, KindFloat, v.Elems()[1].Kind())
}

func TestType_AcceptsAndCoerce(t *testing.T) {
	assert.True(t, TypeFloat.Accepts(Int(1)))
	assert.False(t, TypeInteger.Accepts(Float(1)))
	assert.True(t, TypeTimestamp.Accepts(String("2024-01-01T00:00:00Z")))
	assert.False(t, TypeTimestamp.Accepts(String("soon")))
	assert.Equal(t, KindTimestamp, TypeTimestamp.Coerce(String("2024-01-01T00:00:00Z")).Kind())
	assert.Equal(t, KindFloat, TypeFloat.Coerce(Int(3)).Kind())

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("Boolean")))
	assert.Equal(t, TypeBoolean, typ)
	require.Error(t, typ.UnmarshalText([]byte("blob")))
}

func TestValue_CompareIsAntisymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Int(rapid.Int64().Draw(t, "a"))
		b := Float(rapid.Float64Range(-1e12, 1e12).Draw(t, "b"))

		ab, err := a.Compare(b)
		require.NoError(t, err)
		ba, err := b.Compare(a)
		require.NoError(t, err)
		assert.Equal(t, ab, -ba)
	})
}

func TestValue_CompareIsTransitive(t *testing.T) {
	number := rapid.Custom(func(t *rapid.T) Value {
		n := rapid.Int64Range(-4, 4).Draw(t, "offset")
		if rapid.Bool().Draw(t, "float") {
			return Float(float64(1<<53) + float64(2*n))
		}
		return Int(1<<53 + n)
	})
	rapid.Check(t, func(t *rapid.T) {
		a, b, c := number.Draw(t, "a"), number.Draw(t, "b"), number.Draw(t, "c")
		ab, err := a.Compare(b)
		require.NoError(t, err)
		bc, err := b.Compare(c)
		require.NoError(t, err)
		ac, err := a.Compare(c)
		require.NoError(t, err)
		if ab <= 0 && bc <= 0 {
			assert.LessOrEqual(t, ac, 0, "%v <= %v <= %v", a, b, c)
		}
		if ab == 0 && bc == 0 {
			assert.Equal(t, 0, ac, "%v = %v = %v", a, b, c)
		}
	})
}
