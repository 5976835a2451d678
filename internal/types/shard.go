package types

// =============================================================================
// SHARD TYPES AND CONSTANTS
// =============================================================================

// ShardState defines the durable execution state of a shard.
type ShardState string

const (
	ShardStatePending    ShardState = "pending"     // Planned, never started
	ShardStateInProgress ShardState = "in_progress" // Started; Cursor holds the next index
	ShardStateComplete   ShardState = "complete"    // Whole range written and flushed
	ShardStateFailed     ShardState = "failed"      // Unrecoverable local error; resumes from Cursor
)

// Valid reports whether s is a known state.
func (s ShardState) Valid() bool {
	switch s {
	case ShardStatePending, ShardStateInProgress, ShardStateComplete, ShardStateFailed:
		return true
	default:
		return false
	}
}

// Shard is a contiguous, independently processable slice [Start, End) of one
// engine's enumeration.
type Shard struct {
	ID     int        `json:"id"`
	Engine EngineTag  `json:"engine"`
	Start  uint64     `json:"start"`
	End    uint64     `json:"end"`
	State  ShardState `json:"state"`

	// Cursor is the absolute next index to produce. It equals Start until the
	// first checkpoint and End once the shard is complete.
	Cursor uint64 `json:"cursor"`

	// Written and Bytes describe the shard file at the last checkpoint: the
	// number of lines and the file size. A resumed worker truncates to Bytes.
	Written uint64 `json:"written"`
	Bytes   int64  `json:"bytes"`

	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Len returns the number of indexes covered by the shard.
func (s Shard) Len() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Remaining returns the number of indexes still to produce.
func (s Shard) Remaining() uint64 {
	if s.State == ShardStateComplete || s.Cursor >= s.End {
		return 0
	}
	if s.Cursor < s.Start {
		return s.End - s.Start
	}
	return s.End - s.Cursor
}

// Progress returns completion in the range 0.0-1.0.
func (s Shard) Progress() float64 {
	n := s.Len()
	if n == 0 {
		return 1
	}
	return float64(n-s.Remaining()) / float64(n)
}

// Reset returns the shard to its planned, never-started form.
func (s Shard) Reset() Shard {
	s.State = ShardStatePending
	s.Cursor = s.Start
	s.Written = 0
	s.Bytes = 0
	s.Error = ""
	return s
}

// ShardResult summarizes one worker execution.
type ShardResult struct {
	ShardID   int
	State     ShardState
	Generated uint64 // candidates materialized during this execution
	Written   uint64 // candidates written during this execution (after filters)
	Filtered  uint64 // dropped by length bounds
	Deduped   uint64 // dropped by the global filter
	Err       error
}
