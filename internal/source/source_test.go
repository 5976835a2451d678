package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/mutation"
	"permutex/internal/permute"
	"permutex/internal/types"
)

func collect(t *testing.T, src Source, start, end uint64) []string {
	t.Helper()
	var out []string
	for i := start; i < end; i++ {
		require.NoError(t, src.Emit(i, func(s string) error {
			out = append(out, s)
			return nil
		}))
	}
	return out
}

func pairSource(t *testing.T) *Mutation {
	t.Helper()
	m, err := NewMutation(MutationOptions{
		Tokens: types.TokenSet{
			"first_name": {"John"},
			"pet":        {"rex"},
		},
		Mutation: mutation.Config{Rules: []mutation.Rule{mutation.CaseToggle{At: mutation.PhasePre}}},
		Combine:  Combine{Enabled: true, Separators: []string{"", "_"}},
	})
	require.NoError(t, err)
	return m
}

func TestMutationLayout(t *testing.T) {
	m := pairSource(t)

	// first_name: John john JOHN jOHN; pet: rex REX Rex
	assert.Equal(t, []string{"John", "john", "JOHN", "jOHN"}, m.CategoryWords("first_name"))
	assert.Equal(t, []string{"rex", "REX", "Rex"}, m.CategoryWords("pet"))
	assert.Len(t, m.Words(), 7)

	// 7 singles + first_name->pet 4*2*3 + pet->first_name 3*2*4
	require.Equal(t, uint64(7+24+24), m.Total())
	assert.Equal(t, "John", m.Base(0))
	assert.Equal(t, "Rex", m.Base(6))
	assert.Equal(t, "Johnrex", m.Base(7))
	assert.Equal(t, "JohnREX", m.Base(8))
	assert.Equal(t, "John_rex", m.Base(10))
	assert.Equal(t, "johnrex", m.Base(13))
	assert.Equal(t, "rexJohn", m.Base(31))
	assert.Equal(t, "Rex_jOHN", m.Base(54))
}

func TestShardRangesAreDisjointAndComplete(t *testing.T) {
	m := pairSource(t)
	full := collect(t, m, 0, m.Total())

	cut := []uint64{0, 5, 17, 40, m.Total()}
	var joined []string
	seen := map[string]int{}
	for k := 0; k+1 < len(cut); k++ {
		part := collect(t, m, cut[k], cut[k+1])
		for _, s := range part {
			if prev, ok := seen[s]; ok {
				t.Fatalf("candidate %q in shard %d and %d", s, prev, k)
			}
			seen[s] = k
		}
		joined = append(joined, part...)
	}
	if diff := cmp.Diff(full, joined); diff != "" {
		t.Fatalf("union of ranges differs from full enumeration:\n%s", diff)
	}
}

func TestMutationPostRules(t *testing.T) {
	m, err := NewMutation(MutationOptions{
		Tokens: types.TokenSet{"first_name": {"ann"}},
		Mutation: mutation.Config{
			Rules:     []mutation.Rule{mutation.YearAppend{At: mutation.PhasePost, From: 2020, To: 2021}},
			MaxLength: 7,
		},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.Total())
	assert.Equal(t, []string{"ann", "ann2020", "ann2021"}, collect(t, m, 0, 1))
}

func TestMutationFingerprint(t *testing.T) {
	a := pairSource(t)
	b := pairSource(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := NewMutation(MutationOptions{
		Tokens:   types.TokenSet{"first_name": {"John"}, "pet": {"rex"}},
		Mutation: mutation.Config{Rules: []mutation.Rule{mutation.CaseToggle{At: mutation.PhasePre}}, Depth: 1},
		Combine:  Combine{Enabled: true, Separators: []string{"", "_"}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestMutationRejectsInvalidConfig(t *testing.T) {
	_, err := NewMutation(MutationOptions{Mutation: mutation.Config{Depth: -1}})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestAtomicSource(t *testing.T) {
	a, err := NewAtomic(permute.Spec{Alphabet: []rune("ab"), Min: 1, Max: 2})
	require.NoError(t, err)
	assert.Equal(t, types.EngineAtomic, a.Tag())
	assert.Equal(t, []string{"a", "b", "aa", "ab", "ba", "bb"}, collect(t, a, 0, a.Total()))
}

func TestEstimate(t *testing.T) {
	a, err := NewAtomic(permute.Spec{Alphabet: []rune("ab"), Min: 1, Max: 2})
	require.NoError(t, err)
	est, err := EstimateSource(a, 0)
	require.NoError(t, err)
	assert.Equal(t, Estimate{Engine: types.EngineAtomic, Indexes: 6, Candidates: 6, Bytes: 2*2 + 4*3, Exact: true}, est)

	m := pairSource(t)
	est, err = EstimateSource(m, 1000)
	require.NoError(t, err)
	assert.True(t, est.Exact)
	assert.Equal(t, m.Total(), est.Candidates)

	sampled, err := EstimateSource(m, 5)
	require.NoError(t, err)
	assert.False(t, sampled.Exact)
	assert.Positive(t, sampled.Bytes)
}
