package source

import (
	"math"

	"permutex/internal/types"
)

// DefaultSamples bounds the indexes materialized by Estimate for sources
// without an exact size.
const DefaultSamples = 64

// Estimate sizes a source's output.
type Estimate struct {
	Engine     types.EngineTag
	Indexes    uint64
	Candidates uint64
	Bytes      uint64 // one candidate per line, newline included
	Exact      bool
}

// EstimateSource computes exact figures for the atomic space and for mutation
// spaces small enough to enumerate within samples; otherwise it samples evenly
// spaced indexes and extrapolates.
func EstimateSource(src Source, samples int) (Estimate, error) {
	if samples <= 0 {
		samples = DefaultSamples
	}
	est := Estimate{Engine: src.Tag(), Indexes: src.Total()}
	if est.Indexes == 0 {
		est.Exact = true
		return est, nil
	}

	if a, ok := src.(*Atomic); ok {
		est.Candidates = est.Indexes
		size, exact := a.engine.ByteSize()
		est.Bytes = size
		est.Exact = exact
		return est, nil
	}

	step := uint64(1)
	n := est.Indexes
	if n > uint64(samples) {
		step = n / uint64(samples)
		n = uint64(samples)
	}
	var count, bytes uint64
	for k := uint64(0); k < n; k++ {
		err := src.Emit(k*step, func(s string) error {
			count++
			bytes += uint64(len(s)) + 1
			return nil
		})
		if err != nil {
			return est, err
		}
	}

	if step == 1 {
		est.Candidates, est.Bytes, est.Exact = count, bytes, true
		return est, nil
	}
	scale := float64(est.Indexes) / float64(n)
	est.Candidates = saturate(float64(count) * scale)
	est.Bytes = saturate(float64(bytes) * scale)
	return est, nil
}

func saturate(f float64) uint64 {
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}
