// Package permute implements the atomic permutation engine: exhaustive,
// index-addressable enumeration of every string over an alphabet within a
// length range.
//
// Order is length-major, then lexicographic by alphabet position. Index i is
// decoded in O(length) by locating its length block and reading the offset in
// base |alphabet|, so any contiguous index range can be generated (or resumed)
// without replaying earlier entries.
package permute

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"permutex/internal/types"
)

// Spec is an AlphabetSpec.
type Spec struct {
	Alphabet []rune
	Min, Max int
}

// ParseAlphabet turns a string into an ordered alphabet, dropping repeats.
func ParseAlphabet(s string) []rune {
	seen := make(map[rune]struct{}, len(s))
	var out []rune
	for _, r := range s {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Validate enforces a non-empty alphabet of unique runes and 1 <= Min <= Max.
func (s Spec) Validate() error {
	if len(s.Alphabet) == 0 {
		return types.NewConfigurationError("atomic.alphabet", "alphabet is empty")
	}
	seen := make(map[rune]struct{}, len(s.Alphabet))
	for _, r := range s.Alphabet {
		if _, ok := seen[r]; ok {
			return types.NewConfigurationError("atomic.alphabet", "duplicate character %q", r)
		}
		seen[r] = struct{}{}
	}
	if s.Min < 1 {
		return types.NewConfigurationError("atomic.min_length", "must be >= 1, got %d", s.Min)
	}
	if s.Min > s.Max {
		return types.NewConfigurationError("atomic.min_length", "min length %d exceeds max length %d", s.Min, s.Max)
	}
	return nil
}

// String renders the alphabet and length range for fingerprints and logs.
func (s Spec) String() string {
	return fmt.Sprintf("alphabet=%q;min=%d;max=%d", string(s.Alphabet), s.Min, s.Max)
}

// Engine is a validated spec with precomputed block sizes.
type Engine struct {
	spec   Spec
	blocks []uint64 // blocks[k] = |alphabet|^(Min+k)
	total  uint64
}

// New validates spec and precomputes the total. A space larger than uint64
// fails with ErrSpaceOverflow.
func New(spec Spec) (*Engine, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{spec: Spec{Alphabet: append([]rune(nil), spec.Alphabet...), Min: spec.Min, Max: spec.Max}}
	a := uint64(len(spec.Alphabet))
	for l := spec.Min; l <= spec.Max; l++ {
		n, ok := pow(a, l)
		if !ok {
			return nil, overflow(spec)
		}
		sum, carry := bits.Add64(e.total, n, 0)
		if carry != 0 {
			return nil, overflow(spec)
		}
		e.blocks = append(e.blocks, n)
		e.total = sum
	}
	return e, nil
}

func overflow(spec Spec) error {
	return &types.ConfigurationError{
		Field:  "atomic",
		Reason: fmt.Sprintf("%d characters up to length %d exceeds the addressable space", len(spec.Alphabet), spec.Max),
		Err:    types.ErrSpaceOverflow,
	}
}

func pow(base uint64, exp int) (uint64, bool) {
	out := uint64(1)
	for i := 0; i < exp; i++ {
		hi, lo := bits.Mul64(out, base)
		if hi != 0 {
			return 0, false
		}
		out = lo
	}
	return out, true
}

// Spec returns the engine's alphabet spec.
func (e *Engine) Spec() Spec { return e.spec }

// Total is Σ |alphabet|^ℓ over ℓ in [Min, Max].
func (e *Engine) Total() uint64 { return e.total }

// Nth returns the i-th string of the enumeration. It panics if i >= Total;
// shard ranges are always inside [0, Total).
func (e *Engine) Nth(i uint64) string {
	var b strings.Builder
	e.AppendNth(&b, i)
	return b.String()
}

// AppendNth writes the i-th string to b without allocating a result.
func (e *Engine) AppendNth(b *strings.Builder, i uint64) {
	if i >= e.total {
		panic(fmt.Sprintf("permute: index %d out of range [0,%d)", i, e.total))
	}
	length := e.spec.Min
	for _, n := range e.blocks {
		if i < n {
			break
		}
		i -= n
		length++
	}

	a := uint64(len(e.spec.Alphabet))
	digits := make([]rune, length)
	for pos := length - 1; pos >= 0; pos-- {
		digits[pos] = e.spec.Alphabet[i%a]
		i /= a
	}
	b.Grow(length * 4)
	for _, r := range digits {
		b.WriteRune(r)
	}
}

// ByteSize returns the exact byte size of the enumeration written one string
// per line. ok is false when it does not fit in a uint64.
func (e *Engine) ByteSize() (uint64, bool) {
	var runeBytes uint64
	for _, r := range e.spec.Alphabet {
		runeBytes += uint64(len(string(r)))
	}
	a := uint64(len(e.spec.Alphabet))
	var total uint64
	for k, n := range e.blocks {
		l := uint64(e.spec.Min + k)
		// each position takes every rune n/a times
		perPos, ok := mulChecked(n/a, runeBytes)
		if !ok {
			return math.MaxUint64, false
		}
		chars, ok := mulChecked(perPos, l)
		if !ok {
			return math.MaxUint64, false
		}
		block, carry := bits.Add64(chars, n, 0) // newline per entry
		if carry != 0 {
			return math.MaxUint64, false
		}
		sum, carry := bits.Add64(total, block, 0)
		if carry != 0 {
			return math.MaxUint64, false
		}
		total = sum
	}
	return total, true
}

func mulChecked(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi == 0
}
