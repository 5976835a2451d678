// Package metrics holds the run's Prometheus collectors. The core performs no
// network access, so metrics are exported as a node_exporter textfile rather
// than served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"permutex/internal/types"
)

// Metrics tracks candidate throughput and shard lifecycle for one run. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CandidatesWritten *prometheus.CounterVec
	CandidatesDropped *prometheus.CounterVec
	ShardsCompleted   *prometheus.CounterVec
	ShardsFailed      *prometheus.CounterVec
	ShardsInterrupted *prometheus.CounterVec
	Checkpoints       prometheus.Counter
	ShardDuration     *prometheus.HistogramVec
	ShardsPlanned     *prometheus.GaugeVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CandidatesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permutex_candidates_written_total",
			Help: "Candidates written to shard files",
		}, []string{"engine"}),
		CandidatesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permutex_candidates_dropped_total",
			Help: "Candidates dropped before write, by reason (length, duplicate)",
		}, []string{"engine", "reason"}),
		ShardsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permutex_shards_completed_total",
			Help: "Shards that reached the end of their range",
		}, []string{"engine"}),
		ShardsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permutex_shards_failed_total",
			Help: "Shards that stopped on an unrecoverable local error",
		}, []string{"engine"}),
		ShardsInterrupted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "permutex_shards_interrupted_total",
			Help: "Shards checkpointed and left in progress by cancellation",
		}, []string{"engine"}),
		Checkpoints: f.NewCounter(prometheus.CounterOpts{
			Name: "permutex_checkpoints_total",
			Help: "Shard progress checkpoints persisted to the manifest",
		}),
		ShardDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permutex_shard_duration_seconds",
			Help:    "Wall-clock time of one shard execution",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"engine"}),
		ShardsPlanned: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permutex_shards_planned",
			Help: "Shards in the current plan",
		}, []string{"engine"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveWritten adds n written candidates for engine.
func (m *Metrics) ObserveWritten(engine types.EngineTag, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.CandidatesWritten.WithLabelValues(string(engine)).Add(float64(n))
}

// ObserveDropped adds n dropped candidates for engine and reason.
func (m *Metrics) ObserveDropped(engine types.EngineTag, reason string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.CandidatesDropped.WithLabelValues(string(engine), reason).Add(float64(n))
}

// IncCheckpoint records one persisted checkpoint.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	m.Checkpoints.Inc()
}

// ObserveShard records the terminal state and duration of one execution.
// Call with time.Now() at the start of the shard.
func (m *Metrics) ObserveShard(engine types.EngineTag, state types.ShardState, start time.Time) {
	if m == nil {
		return
	}
	label := string(engine)
	switch state {
	case types.ShardStateComplete:
		m.ShardsCompleted.WithLabelValues(label).Inc()
	case types.ShardStateFailed:
		m.ShardsFailed.WithLabelValues(label).Inc()
	case types.ShardStateInProgress:
		m.ShardsInterrupted.WithLabelValues(label).Inc()
	}
	m.ShardDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

// SetPlanned sets the planned shard count per engine.
func (m *Metrics) SetPlanned(shards []types.Shard) {
	if m == nil {
		return
	}
	counts := map[types.EngineTag]int{}
	for _, s := range shards {
		counts[s.Engine]++
	}
	for engine, n := range counts {
		m.ShardsPlanned.WithLabelValues(string(engine)).Set(float64(n))
	}
}

// Written returns the written counter for engine, for run summaries.
func (m *Metrics) Written(engine types.EngineTag) float64 {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := m.CandidatesWritten.WithLabelValues(string(engine)).Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}

// WriteTextfile writes every collector in the Prometheus text format to path,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
