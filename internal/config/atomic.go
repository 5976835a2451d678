package config

import (
	"permutex/internal/permute"
	"permutex/internal/tokens"
	"permutex/internal/types"
)

// AtomicConfig configures bruteforce enumeration.
type AtomicConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Alphabet  string `yaml:"alphabet"` // repeated characters are dropped
	Derive    bool   `yaml:"derive"`   // use the token runes when alphabet is empty
	MinLength int    `yaml:"min_length"`
	MaxLength int    `yaml:"max_length"`
}

// AlphabetSpec builds the validated AlphabetSpec. ts supplies the derived
// alphabet when none is configured.
func (c *Config) AlphabetSpec(ts types.TokenSet) (permute.Spec, error) {
	alphabet := permute.ParseAlphabet(c.Atomic.Alphabet)
	if len(alphabet) == 0 && c.Atomic.Derive {
		alphabet = tokens.Runes(ts)
	}
	spec := permute.Spec{
		Alphabet: alphabet,
		Min:      c.Atomic.MinLength,
		Max:      c.Atomic.MaxLength,
	}
	if err := spec.Validate(); err != nil {
		return permute.Spec{}, err
	}
	return spec, nil
}
