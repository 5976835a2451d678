// Package mutation implements the recursive mutation engine: a set of
// composable rules expanded level by level up to a fixed depth.
//
// Expansion is breadth-first. Level 0 applies every rule to the base token;
// each further level applies every rule to the strings first produced by the
// previous level. A string is emitted once per expansion, the first time it is
// seen, so commutative rules (case toggled twice) cost nothing beyond the
// lookup. Depth is a configuration bound, never a property of the input.
package mutation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"permutex/internal/types"
)

// Config is the MutationConfig of a run.
type Config struct {
	Rules     []Rule
	Depth     int // rule applications composed beyond the first level
	MaxLength int // 0 means unbounded
	MinLength int // applied by workers as a post-filter; also feeds StretchPattern
}

// Validate rejects configurations that cannot be expanded.
func (c Config) Validate() error {
	if c.Depth < 0 {
		return types.NewConfigurationError("mutation.depth", "must be >= 0, got %d", c.Depth)
	}
	if c.MaxLength < 0 {
		return types.NewConfigurationError("mutation.max_length", "must be >= 0, got %d", c.MaxLength)
	}
	if c.MinLength < 0 {
		return types.NewConfigurationError("mutation.min_length", "must be >= 0, got %d", c.MinLength)
	}
	if c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return types.NewConfigurationError("mutation.min_length", "min_length %d exceeds max_length %d", c.MinLength, c.MaxLength)
	}
	for i, r := range c.Rules {
		if r == nil {
			return types.NewConfigurationError(fmt.Sprintf("mutation.rules[%d]", i), "nil rule")
		}
		if p := r.Phase(); p != PhasePre && p != PhasePost {
			return types.NewConfigurationError(fmt.Sprintf("mutation.rules[%d]", i), "unknown phase %q", p)
		}
		switch v := r.(type) {
		case YearAppend:
			if v.To < v.From {
				return types.NewConfigurationError(fmt.Sprintf("mutation.rules[%d]", i), "year range %d-%d is empty", v.From, v.To)
			}
		case LeetSubstitute:
			for _, p := range v.Table {
				if len(p.To) == 0 {
					return types.NewConfigurationError(fmt.Sprintf("mutation.rules[%d]", i), "leet %q has no replacements", p.From)
				}
			}
		case CaseToggle:
			if v.MaxVariants < 0 {
				return types.NewConfigurationError(fmt.Sprintf("mutation.rules[%d]", i), "max_variants must be >= 0")
			}
		}
	}
	return nil
}

// Phase returns a copy of c keeping only rules of phase p.
func (c Config) Phase(p Phase) Config {
	out := c
	out.Rules = nil
	for _, r := range c.Rules {
		if r.Phase() == p {
			out.Rules = append(out.Rules, r)
		}
	}
	return out
}

// Fingerprint hashes every field that changes the expansion sequence.
func (c Config) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "depth=%d;min=%d;max=%d;", c.Depth, c.MinLength, c.MaxLength)
	for _, r := range c.Rules {
		h.Write([]byte(r.String()))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stats describes one expansion.
type Stats struct {
	Emitted   int
	Discarded int  // outputs dropped for exceeding MaxLength
	Levels    int  // levels that produced at least one new string
	Bounded   bool // the last permitted level still produced new strings
}

// Engine expands tokens with a fixed rule list. It holds no per-call state and
// is safe for concurrent use.
type Engine struct {
	rules     []Rule
	depth     int
	maxLength int
}

// New builds an engine over the rules of cfg. Callers wanting only one phase
// pass cfg.Phase(p).
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		rules:     append([]Rule(nil), cfg.Rules...),
		depth:     cfg.Depth,
		maxLength: cfg.MaxLength,
	}, nil
}

// HasRules reports whether expansion can produce anything beyond the token.
func (e *Engine) HasRules() bool { return len(e.rules) > 0 }

// Expand yields token followed by its mutations, each at most once, in a
// deterministic order. A token longer than MaxLength yields nothing.
func (e *Engine) Expand(token string) iter.Seq[string] {
	return func(yield func(string) bool) {
		e.expand(token, yield, false)
	}
}

// ExpandAll materializes Expand and reports expansion statistics.
func (e *Engine) ExpandAll(token string) ([]string, Stats) {
	var out []string
	st := e.expand(token, func(s string) bool {
		out = append(out, s)
		return true
	}, true)
	return out, st
}

func (e *Engine) fits(s string) bool {
	return e.maxLength == 0 || utf8.RuneCountInString(s) <= e.maxLength
}

func (e *Engine) expand(token string, yield func(string) bool, probe bool) Stats {
	var st Stats
	if token == "" {
		return st
	}
	if !e.fits(token) {
		st.Discarded++
		return st
	}
	st.Emitted++
	if !yield(token) {
		return st
	}

	seen := map[string]struct{}{token: {}}
	frontier := []string{token}
	for level := 0; level <= e.depth && len(frontier) > 0; level++ {
		var next []string
		for _, rule := range e.rules {
			for _, s := range frontier {
				for _, v := range rule.Apply(s) {
					if _, ok := seen[v]; ok || v == "" {
						continue
					}
					if !e.fits(v) {
						st.Discarded++
						continue
					}
					seen[v] = struct{}{}
					next = append(next, v)
					st.Emitted++
					if !yield(v) {
						return st
					}
				}
			}
		}
		if len(next) > 0 {
			st.Levels++
		}
		frontier = next
	}
	st.Bounded = probe && len(frontier) > 0 && e.producesMore(frontier, seen)
	return st
}

// producesMore reports whether one more level would have added a string.
func (e *Engine) producesMore(frontier []string, seen map[string]struct{}) bool {
	for _, rule := range e.rules {
		for _, s := range frontier {
			for _, v := range rule.Apply(s) {
				if _, ok := seen[v]; !ok && v != "" && e.fits(v) {
					return true
				}
			}
		}
	}
	return false
}

// Describe renders the rule list for logs and tables.
func (e *Engine) Describe() string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.String()
	}
	return fmt.Sprintf("depth=%d max=%d rules=[%s]", e.depth, e.maxLength, strings.Join(names, " "))
}
