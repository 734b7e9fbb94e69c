package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"40", 4000},
		{"40.00", 4000},
		{"40.5", 4050},
		{"0.05", 5},
		{".50", 50},
		{"-5", -500},
		{"-0.01", -1},
		{"+12.34", 1234},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "Parse(%q)", tt.in)
		assert.Equal(t, Amount(tt.want), got, "Parse(%q)", tt.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", ".", "1.", "abc", "1.234", "1,00", "1.2.3", "--1", "1e3"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, "Parse(%q) should fail", in)
	}
}

func TestParseRejectsOverflow(t *testing.T) {
	// Whole parts this large cannot be scaled to minor units in an int64;
	// they must be rejected, never silently wrapped.
	for _, in := range []string{
		"400000000000000000",
		"92233720368547758",
		"-400000000000000000",
		"9223372036854775807.99",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, "Parse(%q) should fail", in)
	}

	// The largest representable whole amount still parses.
	got, err := Parse("92233720368547757.99")
	require.NoError(t, err)
	assert.Equal(t, Amount(9223372036854775799), got)
}

func TestString(t *testing.T) {
	assert.Equal(t, "40.00", FromMinor(4000).String())
	assert.Equal(t, "0.05", FromMinor(5).String())
	assert.Equal(t, "-1.50", FromMinor(-150).String())
	assert.Equal(t, "0.00", FromMinor(0).String())
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(FromMinor(10050))
	require.NoError(t, err)
	assert.Equal(t, "100.50", string(b))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte("40.00"), &a))
	assert.Equal(t, FromMinor(4000), a)

	// Quoted strings are accepted too.
	require.NoError(t, json.Unmarshal([]byte(`"-5"`), &a))
	assert.Equal(t, FromMinor(-500), a)
}
