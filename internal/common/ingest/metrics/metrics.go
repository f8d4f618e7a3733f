package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBOperation string

const (
	DBOperationRead            DBOperation = "read"
	DBOperationInsert          DBOperation = "insert"
	DBOperationUpdate          DBOperation = "update"
	DBOperationCreateTempTable DBOperation = "create_temp_table"
)

const DropIngesterMetricsPrefix = "dropingester_"

// Metrics holds the database metrics common to every ingester.
type Metrics struct {
	dbErrorsCounter   *prometheus.CounterVec
	dbOperationTiming *prometheus.HistogramVec
}

func NewMetrics(prefix string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		dbErrorsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "db_errors",
			Help: "Number of database errors grouped by database operation",
		}, []string{"operation"}),
		dbOperationTiming: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "db_operation_duration_seconds",
			Help:    "Duration of successful database operations grouped by database operation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrorsCounter.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordDBOperation(operation DBOperation, duration time.Duration) {
	m.dbOperationTiming.With(map[string]string{"operation": string(operation)}).Observe(duration.Seconds())
}
