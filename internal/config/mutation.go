package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"permutex/internal/mutation"
	"permutex/internal/source"
	"permutex/internal/tokens"
	"permutex/internal/types"
)

// Default year range for a years rule without from/to.
const (
	DefaultYearFrom = 2015
	DefaultYearTo   = 2025
)

// AtomsConfig configures derived atoms.
type AtomsConfig struct {
	Substrings   bool `yaml:"substrings"`
	MinSubstring int  `yaml:"min_substring"`
	Dates        bool `yaml:"dates"`
}

// MutationConfig configures the mutation engine.
type MutationConfig struct {
	Depth     int          `yaml:"depth"`
	MinLength int          `yaml:"min_length"`
	MaxLength int          `yaml:"max_length"`
	Rules     []RuleConfig `yaml:"rules"`
}

// RuleConfig is one mutation rule in declared order. Fields not used by the
// rule's kind are ignored.
type RuleConfig struct {
	Kind  string `yaml:"kind"`            // case, leet, reverse, years, stretch
	Phase string `yaml:"phase,omitempty"` // pre (default), post

	// case
	Exhaustive  bool `yaml:"exhaustive,omitempty"`
	MaxVariants int  `yaml:"max_variants,omitempty"`

	// leet: character -> replacement characters
	Table map[string]string `yaml:"table,omitempty"`

	// years
	From  int  `yaml:"from,omitempty"`
	To    int  `yaml:"to,omitempty"`
	Short bool `yaml:"short,omitempty"`
}

// CombineConfig configures category pair combination.
type CombineConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Separators     []string `yaml:"separators,omitempty"` // empty means the default set
	AllowSelfPairs bool     `yaml:"allow_self_pairs"`
	Pairs          []string `yaml:"pairs,omitempty"` // "first_name+pet"; empty means every ordered pair
}

// DefaultMutationConfig returns the default rule chain.
func DefaultMutationConfig() MutationConfig {
	return MutationConfig{
		Depth:     1,
		MaxLength: 32,
		Rules: []RuleConfig{
			{Kind: string(mutation.KindCase)},
			{Kind: string(mutation.KindLeet)},
			{Kind: string(mutation.KindReverse)},
			{Kind: string(mutation.KindYears), Phase: string(mutation.PhasePost), From: DefaultYearFrom, To: DefaultYearTo},
		},
	}
}

// AtomOptions converts the atoms section.
func (c *Config) AtomOptions() tokens.AtomOptions {
	return tokens.AtomOptions{
		Substrings:   c.Atoms.Substrings,
		MinSubstring: c.Atoms.MinSubstring,
		Dates:        c.Atoms.Dates,
	}
}

// MutationSpec builds and validates the engine configuration.
func (c *Config) MutationSpec() (mutation.Config, error) {
	m := c.Mutation
	out := mutation.Config{
		Depth:     m.Depth,
		MinLength: m.MinLength,
		MaxLength: m.MaxLength,
	}
	for i, rc := range m.Rules {
		r, err := rc.rule(fmt.Sprintf("mutation.rules[%d]", i), m.MinLength)
		if err != nil {
			return mutation.Config{}, err
		}
		out.Rules = append(out.Rules, r)
	}
	if err := out.Validate(); err != nil {
		return mutation.Config{}, err
	}
	return out, nil
}

func (rc RuleConfig) rule(field string, minLength int) (mutation.Rule, error) {
	phase := mutation.PhasePre
	switch strings.ToLower(rc.Phase) {
	case "", "pre":
	case "post":
		phase = mutation.PhasePost
	default:
		return nil, types.NewConfigurationError(field+".phase", "unknown phase %q", rc.Phase)
	}

	switch mutation.RuleKind(strings.ToLower(rc.Kind)) {
	case mutation.KindCase:
		return mutation.CaseToggle{At: phase, Exhaustive: rc.Exhaustive, MaxVariants: rc.MaxVariants}, nil
	case mutation.KindLeet:
		table, err := leetTable(field, rc.Table)
		if err != nil {
			return nil, err
		}
		return mutation.LeetSubstitute{At: phase, Table: table}, nil
	case mutation.KindReverse:
		return mutation.Reversal{At: phase}, nil
	case mutation.KindYears:
		from, to := rc.From, rc.To
		if from == 0 && to == 0 {
			from, to = DefaultYearFrom, DefaultYearTo
		}
		return mutation.YearAppend{At: phase, From: from, To: to, Short: rc.Short}, nil
	case mutation.KindStretch:
		return mutation.StretchPattern{At: phase, MinLength: minLength}, nil
	default:
		return nil, types.NewConfigurationError(field+".kind", "unknown rule kind %q", rc.Kind)
	}
}

// leetTable converts the YAML map into a table ordered by source character.
// A nil map selects the default table.
func leetTable(field string, m map[string]string) ([]mutation.LeetPair, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make([]mutation.LeetPair, 0, len(keys))
	for _, k := range keys {
		if utf8.RuneCountInString(k) != 1 {
			return nil, types.NewConfigurationError(field+".table", "key %q must be a single character", k)
		}
		from, _ := utf8.DecodeRuneInString(k)
		to := []rune(m[k])
		if len(to) == 0 {
			return nil, types.NewConfigurationError(field+".table", "%q has no replacements", k)
		}
		table = append(table, mutation.LeetPair{From: from, To: to})
	}
	return table, nil
}

// CombineSpec converts the combine section.
func (c *Config) CombineSpec() (source.Combine, error) {
	out := source.Combine{
		Enabled:        c.Combine.Enabled,
		Separators:     c.Combine.Separators,
		AllowSelfPairs: c.Combine.AllowSelfPairs,
	}
	for i, p := range c.Combine.Pairs {
		first, second, ok := strings.Cut(p, "+")
		first, second = strings.TrimSpace(first), strings.TrimSpace(second)
		if !ok || first == "" || second == "" {
			return source.Combine{}, types.NewConfigurationError(fmt.Sprintf("combine.pairs[%d]", i), "want \"first+second\", got %q", p)
		}
		out.Pairs = append(out.Pairs, source.Pair{First: first, Second: second})
	}
	return out, nil
}

// MutationOptions assembles everything the mutation space needs.
func (c *Config) MutationOptions(ts types.TokenSet) (source.MutationOptions, error) {
	mc, err := c.MutationSpec()
	if err != nil {
		return source.MutationOptions{}, err
	}
	comb, err := c.CombineSpec()
	if err != nil {
		return source.MutationOptions{}, err
	}
	return source.MutationOptions{
		Tokens:   ts,
		Atoms:    c.AtomOptions(),
		Mutation: mc,
		Combine:  comb,
	}, nil
}
