// Package dedup implements the optional global-dedup mode: a filter of
// already-emitted normalized candidates shared by every worker of a run.
//
// Consulting the filter is a serialization point across shards and makes the
// owner of a duplicate depend on scheduling. The default mode is off:
// duplicates across shards are allowed.
package dedup

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"permutex/internal/types"
)

// Mode selects the filter implementation.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeMemory Mode = "memory"
	ModeSQLite Mode = "sqlite"
)

// ParseMode maps a config string to a Mode. Empty means off.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOff, nil
	case ModeOff, ModeMemory, ModeSQLite:
		return m, nil
	default:
		return "", types.NewConfigurationError("dedup.mode", "unknown mode %q (want off, memory or sqlite)", s)
	}
}

// Filter records emitted candidates. Each value is owned by the shard index
// that first admitted it, so a resumed shard can drop what it recorded after
// its last checkpoint.
type Filter interface {
	// Admit reports whether value is new and records it for (shardID, idx).
	Admit(ctx context.Context, shardID int, idx uint64, value string) (bool, error)
	// Rewind forgets values admitted by shardID at indexes >= from.
	Rewind(ctx context.Context, shardID int, from uint64) error
	Close() error
}

// Open returns the filter for mode. ModeOff returns a nil Filter. The memory
// filter lives for the process; the SQLite filter at path survives resumes.
func Open(mode Mode, path string) (Filter, error) {
	switch mode {
	case ModeOff, "":
		return nil, nil
	case ModeMemory:
		return NewMemory(), nil
	case ModeSQLite:
		f, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, types.NewConfigurationError("dedup.mode", "unknown mode %q", mode)
	}
}

// Normalize is the comparison form of a candidate (Unicode NFC).
func Normalize(value string) string {
	return norm.NFC.String(value)
}

type owner struct {
	shard int
	idx   uint64
}

// Memory is an in-process filter.
type Memory struct {
	mu   sync.Mutex
	seen map[string]owner
}

// NewMemory creates an empty in-process filter.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]owner)}
}

func (m *Memory) Admit(_ context.Context, shardID int, idx uint64, value string) (bool, error) {
	key := Normalize(value)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = owner{shard: shardID, idx: idx}
	return true, nil
}

func (m *Memory) Rewind(_ context.Context, shardID int, from uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, o := range m.seen {
		if o.shard == shardID && o.idx >= from {
			delete(m.seen, k)
		}
	}
	return nil
}

// Len returns the number of recorded values.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func (m *Memory) Close() error { return nil }
