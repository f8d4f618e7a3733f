package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/G-Research/dropingester/internal/common/ingest/metrics"
)

const prefix = metrics.DropIngesterMetricsPrefix

// Drop ingester specific metrics
type Metrics struct {
	*metrics.Metrics
	filesClaimed     prometheus.Counter
	claimContention  prometheus.Counter
	outcomes         *prometheus.CounterVec
	recordsPersisted *prometheus.CounterVec
	persistDuration  prometheus.Histogram
	idlePolls        prometheus.Counter
	workerErrors     prometheus.Counter
	activeWorkers    prometheus.Gauge
	pendingFiles     prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Metrics: metrics.NewMetrics(prefix, registerer),
		filesClaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "files_claimed",
			Help: "Number of drop files claimed by a worker",
		}),
		claimContention: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "claim_contention",
			Help: "Number of candidate files skipped because another worker held them",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "file_outcomes",
			Help: "Number of claimed files grouped by processing outcome and reason",
		}, []string{"outcome", "reason"}),
		recordsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_persisted",
			Help: "Number of message records persisted grouped by variant",
		}, []string{"variant"}),
		persistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "persist_duration_seconds",
			Help:    "Time taken to persist the records of one file",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		idlePolls: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "idle_polls",
			Help: "Number of worker iterations that found no claimable file",
		}),
		workerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "worker_errors",
			Help: "Number of worker iterations that ended in an unexpected error",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "active_workers",
			Help: "Number of worker loops currently running",
		}),
		pendingFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "pending_files",
			Help: "Number of eligible files waiting in the drop folder at the last scan",
		}),
	}
}

func (m *Metrics) RecordFileClaimed() {
	m.filesClaimed.Inc()
}

func (m *Metrics) RecordClaimContention() {
	m.claimContention.Inc()
}

func (m *Metrics) RecordOutcome(outcome string, reason string) {
	m.outcomes.With(map[string]string{"outcome": outcome, "reason": reason}).Inc()
}

func (m *Metrics) RecordPersisted(variant string, numRecords int, duration time.Duration) {
	m.recordsPersisted.With(map[string]string{"variant": variant}).Add(float64(numRecords))
	m.persistDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordIdlePoll() {
	m.idlePolls.Inc()
}

func (m *Metrics) RecordWorkerError() {
	m.workerErrors.Inc()
}

func (m *Metrics) WorkerStarted() {
	m.activeWorkers.Inc()
}

func (m *Metrics) WorkerStopped() {
	m.activeWorkers.Dec()
}

func (m *Metrics) SetPendingFiles(n int) {
	m.pendingFiles.Set(float64(n))
}
