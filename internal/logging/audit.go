package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// AuditFileName is the run audit trail inside a work dir.
const AuditFileName = "audit.jsonl"

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one entry of the run audit trail.
type AuditEventType string

const (
	// Run lifecycle
	AuditRunStart       AuditEventType = "run_start"
	AuditRunComplete    AuditEventType = "run_complete"
	AuditRunInterrupted AuditEventType = "run_interrupted"
	AuditRunBudget      AuditEventType = "run_budget"
	AuditRunFailed      AuditEventType = "run_failed"

	// Manifest reconciliation
	AuditManifestMismatch AuditEventType = "manifest_mismatch"

	// Shard lifecycle
	AuditShardComplete AuditEventType = "shard_complete"
	AuditShardPaused   AuditEventType = "shard_paused"
	AuditShardFailed   AuditEventType = "shard_failed"

	// Merge
	AuditMergeComplete AuditEventType = "merge_complete"
	AuditMergeFailed   AuditEventType = "merge_failed"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent is one JSON line of the audit trail.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	RunID      string                 `json:"run,omitempty"`
	ShardID    string                 `json:"shard,omitempty"`
	Engine     string                 `json:"engine,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends events to a run's audit trail. A nil *AuditLogger
// discards everything, so callers never need to check.
type AuditLogger struct {
	mu    *sync.Mutex
	file  *os.File
	runID string
}

// OpenAudit opens (appending) the audit trail of workDir.
func OpenAudit(workDir, runID string) (*AuditLogger, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(workDir, AuditFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &AuditLogger{mu: &sync.Mutex{}, file: f, runID: runID}, nil
}

// Close closes the audit file.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	if a == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}

	data, err := json.Marshal(event)
	if err != nil {
		Get(CategoryRunner).Warn("audit: failed to encode %s: %v", event.EventType, err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	if _, err := a.file.Write(append(data, '\n')); err != nil {
		Get(CategoryRunner).Warn("audit: write failed: %v", err)
	}
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// RunStart records the start of an execution.
func (a *AuditLogger) RunStart(fingerprint string, toRun, skipped, workers int) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		Success:   true,
		Fields: map[string]interface{}{
			"fingerprint": fingerprint,
			"to_run":      toRun,
			"skipped":     skipped,
			"workers":     workers,
		},
	})
}

// RunEnd records how an execution stopped.
func (a *AuditLogger) RunEnd(event AuditEventType, elapsed time.Duration, written uint64, err error) {
	e := AuditEvent{
		EventType:  event,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
		Fields:     map[string]interface{}{"written": written},
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// ManifestMismatch records that a stale manifest was archived.
func (a *AuditLogger) ManifestMismatch(archivedTo string) {
	a.Log(AuditEvent{EventType: AuditManifestMismatch, Success: true, Message: archivedTo})
}

// Shard records the outcome of one shard.
func (a *AuditLogger) Shard(id int, engine string, event AuditEventType, generated, written uint64, err error) {
	e := AuditEvent{
		EventType: event,
		ShardID:   strconv.Itoa(id),
		Engine:    engine,
		Success:   err == nil,
		Fields:    map[string]interface{}{"generated": generated, "written": written},
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// Merge records the merge stage.
func (a *AuditLogger) Merge(output string, lines uint64, elapsed time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditMergeComplete,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
		Message:    output,
		Fields:     map[string]interface{}{"lines": lines},
	}
	if err != nil {
		e.EventType = AuditMergeFailed
		e.Error = err.Error()
	}
	a.Log(e)
}

// ReadAudit parses an audit trail. Malformed lines are skipped.
func ReadAudit(workDir string) ([]AuditEvent, error) {
	data, err := os.ReadFile(filepath.Join(workDir, AuditFileName))
	if err != nil {
		return nil, err
	}
	var events []AuditEvent
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		var e AuditEvent
		if json.Unmarshal(data[start:i], &e) == nil {
			events = append(events, e)
		}
		start = i + 1
	}
	return events, nil
}
