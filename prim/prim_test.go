package prim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"bool", Bool()},
		{"char", Char()},
		{"int", Int()},
		{" float ", Float()},
		{"string", String()},
		{"option<int>", Option(Int())},
		{"list<option<string>>", List(Option(String()))},
		{"List < Int >", List(Int())},
	}
	for _, tc := range tests {
		got, err := ParseType(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.True(t, got.Equal(tc.want), "%s: got %s want %s", tc.raw, got, tc.want)
	}
}

func TestParseType_Rejects(t *testing.T) {
	for _, raw := range []string{"", "integer", "option", "option<>", "list<int", "int>", "list<int> x"} {
		_, err := ParseType(raw)
		assert.Error(t, err, raw)
	}
}

func TestType_StringRoundTrip(t *testing.T) {
	typ := List(Option(List(Char())))
	parsed, err := ParseType(typ.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(typ))
	assert.Equal(t, "list<option<list<char>>>", typ.String())
}

func TestValue_Matches(t *testing.T) {
	assert.True(t, IntValue(3).Matches(Int()))
	assert.False(t, IntValue(3).Matches(Float()))
	assert.True(t, None().Matches(Option(String())))
	assert.False(t, None().Matches(String()))
	assert.True(t, Some(StringValue("x")).Matches(Option(String())))
	assert.False(t, Some(IntValue(1)).Matches(Option(String())))
	assert.True(t, ListValue().Matches(List(Bool())))
	assert.True(t, ListValue(BoolValue(true), BoolValue(false)).Matches(List(Bool())))
	assert.False(t, ListValue(BoolValue(true), IntValue(1)).Matches(List(Bool())))
	assert.True(t, ListValue(Some(CharValue('a')), None()).Matches(List(Option(Char()))))
	assert.False(t, Value{}.Matches(Int()))
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, ListValue(IntValue(1), IntValue(2)).Equal(ListValue(IntValue(1), IntValue(2))))
	assert.False(t, ListValue(IntValue(1)).Equal(ListValue(IntValue(1), IntValue(2))))
	assert.True(t, None().Equal(None()))
	assert.False(t, None().Equal(Some(IntValue(0))))
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
	assert.True(t, Some(StringValue("a")).Equal(Some(StringValue("a"))))
}

func TestValue_ItemsAreCopied(t *testing.T) {
	items := []Value{IntValue(1)}
	v := ListValue(items...)
	items[0] = IntValue(2)

	got := v.Items()
	require.Len(t, got, 1)
	n, ok := got[0].Int()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}
