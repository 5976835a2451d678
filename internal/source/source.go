// Package source adapts the generation engines to a common index-addressable
// form. Each Source has an exact Total and a pure Emit(i) that materializes the
// deterministic group of candidates at index i; shards are ranges over that
// index space and cursors are plain indexes into it.
package source

import (
	"permutex/internal/permute"
	"permutex/internal/types"
)

// Source is one engine's ordered candidate space.
type Source interface {
	Tag() types.EngineTag
	// Total is the exact size of the index space.
	Total() uint64
	// Emit calls fn for every candidate at index i, in order. It stops at the
	// first error fn returns.
	Emit(i uint64, fn func(string) error) error
	// Fingerprint identifies the enumeration; equal fingerprints mean equal
	// Emit output for every index.
	Fingerprint() string
}

// Atomic exposes the permutation engine. Every index yields exactly one
// candidate.
type Atomic struct {
	engine *permute.Engine
}

// NewAtomic builds an atomic source over spec.
func NewAtomic(spec permute.Spec) (*Atomic, error) {
	e, err := permute.New(spec)
	if err != nil {
		return nil, err
	}
	return &Atomic{engine: e}, nil
}

func (a *Atomic) Tag() types.EngineTag { return types.EngineAtomic }
func (a *Atomic) Total() uint64        { return a.engine.Total() }
func (a *Atomic) Fingerprint() string  { return "atomic:" + a.engine.Spec().String() }

// Spec returns the alphabet spec.
func (a *Atomic) Spec() permute.Spec { return a.engine.Spec() }

func (a *Atomic) Emit(i uint64, fn func(string) error) error {
	return fn(a.engine.Nth(i))
}
