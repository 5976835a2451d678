package mutation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/types"
)

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestExpandCaseToggleDepthOne(t *testing.T) {
	e := mustEngine(t, Config{Rules: []Rule{CaseToggle{At: PhasePre}}, Depth: 1, MaxLength: 10})

	got, st := e.ExpandAll("John")
	assert.ElementsMatch(t, []string{"john", "JOHN", "John", "jOHN"}, got)
	assert.Len(t, got, 4, "no duplicates")
	assert.False(t, st.Bounded)
}

func TestExpandDepthZeroIsSingleRule(t *testing.T) {
	cfg := Config{
		Rules: []Rule{Reversal{At: PhasePre}, YearAppend{At: PhasePre, From: 2000, To: 2001}},
		Depth: 0,
	}
	got, st := mustEngine(t, cfg).ExpandAll("ab")
	want := []string{"ab", "ba", "ab2000", "ab2001"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Expand mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, st.Bounded, "composition stopped by depth")
	assert.Equal(t, 1, st.Levels)

	deeper, _ := mustEngine(t, Config{Rules: cfg.Rules, Depth: 1}).ExpandAll("ab")
	assert.Contains(t, deeper, "ba2000")
	assert.Contains(t, deeper, "0002ba")
}

func TestExpandIsDeterministic(t *testing.T) {
	cfg := Config{
		Rules: []Rule{
			CaseToggle{At: PhasePre},
			LeetSubstitute{At: PhasePre},
			Reversal{At: PhasePre},
		},
		Depth: 2,
	}
	a, _ := mustEngine(t, cfg).ExpandAll("Stella")
	b, _ := mustEngine(t, cfg).ExpandAll("Stella")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("expansion order changed between engines:\n%s", diff)
	}

	seen := map[string]bool{}
	for _, s := range a {
		require.False(t, seen[s], "duplicate %q", s)
		seen[s] = true
	}
}

func TestExpandMaxLengthDiscardsEagerly(t *testing.T) {
	e := mustEngine(t, Config{
		Rules:     []Rule{YearAppend{At: PhasePre, From: 1999, To: 2000}, Reversal{At: PhasePre}},
		Depth:     3,
		MaxLength: 6,
	})
	got, st := e.ExpandAll("ab")
	for _, s := range got {
		assert.LessOrEqual(t, len(s), 6, s)
	}
	assert.Contains(t, got, "ab1999")
	assert.Positive(t, st.Discarded)

	none, st := e.ExpandAll("abcdefg")
	assert.Empty(t, none)
	assert.Equal(t, 1, st.Discarded)
}

func TestExpandStopsEarly(t *testing.T) {
	e := mustEngine(t, Config{Rules: []Rule{CaseToggle{At: PhasePre}}, Depth: 4})
	n := 0
	for range e.Expand("john") {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestExpandWithoutRulesYieldsToken(t *testing.T) {
	e := mustEngine(t, Config{})
	got, _ := e.ExpandAll("x")
	assert.Equal(t, []string{"x"}, got)
	assert.False(t, e.HasRules())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"negative depth", Config{Depth: -1}, "mutation.depth"},
		{"min above max", Config{MinLength: 9, MaxLength: 8}, "mutation.min_length"},
		{"empty years", Config{Rules: []Rule{YearAppend{At: PhasePre, From: 2001, To: 2000}}}, "mutation.rules[0]"},
		{"leet without replacements", Config{Rules: []Rule{LeetSubstitute{At: PhasePre, Table: []LeetPair{{From: 'a'}}}}}, "mutation.rules[0]"},
		{"bad phase", Config{Rules: []Rule{Reversal{At: "during"}}}, "mutation.rules[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.ErrorIs(t, err, types.ErrConfiguration)
			var ce *types.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestPhaseAndFingerprint(t *testing.T) {
	cfg := Config{
		Rules: []Rule{CaseToggle{At: PhasePre}, YearAppend{At: PhasePost, From: 2020, To: 2024}},
		Depth: 1,
	}
	assert.Len(t, cfg.Phase(PhasePre).Rules, 1)
	assert.Len(t, cfg.Phase(PhasePost).Rules, 1)

	deeper := cfg
	deeper.Depth = 2
	assert.NotEqual(t, cfg.Fingerprint(), deeper.Fingerprint())
	assert.Equal(t, cfg.Fingerprint(), Config{Rules: cfg.Rules, Depth: 1}.Fingerprint())
}
