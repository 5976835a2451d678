package permute

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/types"
)

func TestNthAB(t *testing.T) {
	e, err := New(Spec{Alphabet: []rune("ab"), Min: 1, Max: 2})
	require.NoError(t, err)
	require.Equal(t, uint64(6), e.Total())

	want := []string{"a", "b", "aa", "ab", "ba", "bb"}
	for i, w := range want {
		assert.Equal(t, w, e.Nth(uint64(i)), "nth(%d)", i)
	}
}

func TestTotalAndBijection(t *testing.T) {
	specs := []Spec{
		{Alphabet: []rune("abc"), Min: 1, Max: 4},
		{Alphabet: []rune("01"), Min: 3, Max: 6},
		{Alphabet: []rune("éß7"), Min: 2, Max: 3},
		{Alphabet: []rune("x"), Min: 1, Max: 5},
	}
	for _, s := range specs {
		e, err := New(s)
		require.NoError(t, err)

		var want uint64
		a := uint64(len(s.Alphabet))
		for l := s.Min; l <= s.Max; l++ {
			n := uint64(1)
			for i := 0; i < l; i++ {
				n *= a
			}
			want += n
		}
		require.Equal(t, want, e.Total(), s.String())

		seen := make(map[string]struct{}, want)
		var bytes uint64
		prevLen := 0
		for i := uint64(0); i < e.Total(); i++ {
			v := e.Nth(i)
			_, dup := seen[v]
			require.False(t, dup, "%s: nth(%d)=%q repeats", s, i, v)
			seen[v] = struct{}{}

			l := len([]rune(v))
			require.GreaterOrEqual(t, l, prevLen, "length-major order")
			prevLen = l
			bytes += uint64(len(v)) + 1
		}

		size, ok := e.ByteSize()
		require.True(t, ok)
		assert.Equal(t, bytes, size, s.String())
	}
}

func TestNthOutOfRangePanics(t *testing.T) {
	e, err := New(Spec{Alphabet: []rune("ab"), Min: 1, Max: 1})
	require.NoError(t, err)
	assert.Panics(t, func() { e.Nth(2) })
}

func TestValidate(t *testing.T) {
	cases := map[string]Spec{
		"empty alphabet": {Min: 1, Max: 2},
		"min above max":  {Alphabet: []rune("ab"), Min: 3, Max: 2},
		"zero min":       {Alphabet: []rune("ab"), Min: 0, Max: 2},
		"duplicates":     {Alphabet: []rune("aba"), Min: 1, Max: 2},
	}
	for name, s := range cases {
		_, err := New(s)
		assert.ErrorIs(t, err, types.ErrConfiguration, name)
	}
}

func TestOverflow(t *testing.T) {
	_, err := New(Spec{Alphabet: []rune(printable()), Min: 1, Max: 12})
	require.ErrorIs(t, err, types.ErrSpaceOverflow)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestParseAlphabetDedupes(t *testing.T) {
	assert.Equal(t, []rune("ab"), ParseAlphabet("abba"))
	assert.Equal(t, []rune("john206"), ParseAlphabet("john2006jo"))
}

func printable() string {
	var b strings.Builder
	for r := rune(0x21); r < 0x7f; r++ {
		b.WriteRune(r)
	}
	return b.String()
}
