package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"go.uber.org/zap"

	"permutex/internal/logging"
	"permutex/internal/mutation"
	"permutex/internal/tokens"
	"permutex/internal/types"
)

// DefaultSeparators joins the two words of a category pair.
var DefaultSeparators = []string{"", "_", ".", "@", "-", "!"}

// Pair names an ordered category pair: words of First, a separator, words of
// Second.
type Pair struct {
	First, Second string
}

// Combine controls category pair combination.
type Combine struct {
	Enabled        bool
	Separators     []string
	AllowSelfPairs bool
	Pairs          []Pair // explicit pairs; empty means every ordered pair
}

func (c Combine) separators() []string {
	if len(c.Separators) == 0 {
		return DefaultSeparators
	}
	return c.Separators
}

func (c Combine) String() string {
	if !c.Enabled {
		return "combine=off"
	}
	var pairs []string
	for _, p := range c.Pairs {
		pairs = append(pairs, p.First+"+"+p.Second)
	}
	return fmt.Sprintf("combine=on;seps=%q;self=%t;pairs=%s", c.separators(), c.AllowSelfPairs, strings.Join(pairs, ","))
}

// MutationOptions is everything that shapes the mutation space.
type MutationOptions struct {
	Tokens   types.TokenSet
	Atoms    tokens.AtomOptions
	Mutation mutation.Config
	Combine  Combine
}

type block struct {
	first, second []string
	size          uint64
}

// Mutation is the token-mutation candidate space. Index layout: one index per
// unique single word W[i], then one block per category pair of size
// |W_A| x |S| x |W_B| decoded as (a, s, b) in row-major order. Each index
// yields the post-phase expansion of its base candidate.
type Mutation struct {
	words       []string
	perCategory map[string][]string
	categories  []string
	separators  []string
	blocks      []block
	total       uint64
	post        *mutation.Engine
	fingerprint string
}

// NewMutation builds the word lists (atoms, then pre-phase expansion) and the
// pair blocks. The result is immutable and safe for concurrent Emit calls.
func NewMutation(opts MutationOptions) (*Mutation, error) {
	if err := opts.Mutation.Validate(); err != nil {
		return nil, err
	}
	pre, err := mutation.New(opts.Mutation.Phase(mutation.PhasePre))
	if err != nil {
		return nil, err
	}
	post, err := mutation.New(opts.Mutation.Phase(mutation.PhasePost))
	if err != nil {
		return nil, err
	}

	ts := tokens.Normalize(opts.Tokens)
	m := &Mutation{
		perCategory: make(map[string][]string, len(ts)),
		categories:  tokens.Categories(ts),
		post:        post,
	}

	log := logging.Get(logging.CategoryEngine)
	bounded := 0
	global := make(map[string]struct{})
	for _, cat := range m.categories {
		seen := make(map[string]struct{})
		var words []string
		for _, value := range ts[cat] {
			for _, atom := range tokens.Atoms(cat, value, opts.Atoms) {
				expanded, st := pre.ExpandAll(atom)
				if st.Bounded {
					bounded++
				}
				for _, w := range expanded {
					if _, ok := seen[w]; ok {
						continue
					}
					seen[w] = struct{}{}
					words = append(words, w)
					if _, ok := global[w]; !ok {
						global[w] = struct{}{}
						m.words = append(m.words, w)
					}
				}
			}
		}
		m.perCategory[cat] = words
		log.Debug("category %s: %d words", cat, len(words))
	}
	if bounded > 0 {
		log.Event("recursion_bound", "mutation depth limit stopped expansion",
			zap.Int("atoms", bounded), zap.Int("depth", opts.Mutation.Depth))
	}

	m.total = uint64(len(m.words))
	if opts.Combine.Enabled {
		m.separators = append([]string(nil), opts.Combine.separators()...)
		for _, p := range m.pairs(opts.Combine) {
			first, second := m.perCategory[p.First], m.perCategory[p.Second]
			size, ok := mul3(uint64(len(first)), uint64(len(m.separators)), uint64(len(second)))
			if !ok {
				return nil, &types.ConfigurationError{Field: "combine", Reason: "pair space too large", Err: types.ErrSpaceOverflow}
			}
			if size == 0 {
				continue
			}
			sum, carry := bits.Add64(m.total, size, 0)
			if carry != 0 {
				return nil, &types.ConfigurationError{Field: "combine", Reason: "pair space too large", Err: types.ErrSpaceOverflow}
			}
			m.blocks = append(m.blocks, block{first: first, second: second, size: size})
			m.total = sum
		}
	}

	m.fingerprint = mutationFingerprint(ts, opts)
	return m, nil
}

func (m *Mutation) pairs(c Combine) []Pair {
	if len(c.Pairs) > 0 {
		var out []Pair
		for _, p := range c.Pairs {
			_, okA := m.perCategory[p.First]
			_, okB := m.perCategory[p.Second]
			if !okA || !okB {
				logging.Get(logging.CategoryEngine).Warn("skipping pair %s+%s: category has no tokens", p.First, p.Second)
				continue
			}
			out = append(out, p)
		}
		return out
	}
	var out []Pair
	for _, a := range m.categories {
		for _, b := range m.categories {
			if a == b && !c.AllowSelfPairs {
				continue
			}
			out = append(out, Pair{First: a, Second: b})
		}
	}
	return out
}

func mul3(a, b, c uint64) (uint64, bool) {
	hi, ab := bits.Mul64(a, b)
	if hi != 0 {
		return 0, false
	}
	hi, abc := bits.Mul64(ab, c)
	return abc, hi == 0
}

func mutationFingerprint(ts types.TokenSet, opts MutationOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "tokens=%s;", tokens.Hash(ts))
	fmt.Fprintf(h, "atoms=%t/%d/%t;", opts.Atoms.Substrings, opts.Atoms.MinSubstring, opts.Atoms.Dates)
	fmt.Fprintf(h, "mutation=%s;", opts.Mutation.Fingerprint())
	fmt.Fprintf(h, "%s;", opts.Combine.String())
	return "mutation:" + hex.EncodeToString(h.Sum(nil))
}

func (m *Mutation) Tag() types.EngineTag { return types.EngineMutation }
func (m *Mutation) Total() uint64        { return m.total }
func (m *Mutation) Fingerprint() string  { return m.fingerprint }

// Words returns the de-duplicated single words in index order.
func (m *Mutation) Words() []string { return m.words }

// CategoryWords returns the word list of one category.
func (m *Mutation) CategoryWords(category string) []string { return m.perCategory[category] }

// Base decodes index i into its base candidate, before post-phase rules.
func (m *Mutation) Base(i uint64) string {
	if i >= m.total {
		panic(fmt.Sprintf("source: mutation index %d out of range [0,%d)", i, m.total))
	}
	if i < uint64(len(m.words)) {
		return m.words[i]
	}
	i -= uint64(len(m.words))
	for _, b := range m.blocks {
		if i >= b.size {
			i -= b.size
			continue
		}
		stride := uint64(len(m.separators)) * uint64(len(b.second))
		a := i / stride
		rem := i % stride
		s := rem / uint64(len(b.second))
		w := rem % uint64(len(b.second))
		return b.first[a] + m.separators[s] + b.second[w]
	}
	panic("source: block table inconsistent with total")
}

func (m *Mutation) Emit(i uint64, fn func(string) error) error {
	for v := range m.post.Expand(m.Base(i)) {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
