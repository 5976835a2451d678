// Package types provides shared type definitions used across permutex packages.
// This package exists to break import cycles between the planner, the manifest store,
// the workers and the merge stage. Types in this package should be foundational data
// structures with no complex dependencies.
package types

import "fmt"

// =============================================================================
// ENGINE TAGS
// =============================================================================

// EngineTag identifies which candidate engine owns an index space.
type EngineTag string

const (
	EngineMutation EngineTag = "mutation" // Token-level mutation space (words + category pairs)
	EngineAtomic   EngineTag = "atomic"   // Character-level permutation space (chaos mode)
)

// Valid reports whether the tag names a known engine.
func (e EngineTag) Valid() bool {
	switch e {
	case EngineMutation, EngineAtomic:
		return true
	default:
		return false
	}
}

// ParseEngineTag converts a manifest string into an EngineTag.
func ParseEngineTag(s string) (EngineTag, error) {
	tag := EngineTag(s)
	if !tag.Valid() {
		return "", fmt.Errorf("unknown engine tag %q", s)
	}
	return tag, nil
}

// =============================================================================
// TOKEN SET
// =============================================================================

// TokenSet maps a category label ("first_name", "dob", "custom") to its ordered
// raw seed values. Values are kept exactly as entered.
type TokenSet map[string][]string
