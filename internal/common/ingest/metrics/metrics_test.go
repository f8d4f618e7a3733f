package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(DropIngesterMetricsPrefix, registry)

	m.RecordDBError(DBOperationInsert)
	m.RecordDBError(DBOperationInsert)
	m.RecordDBError(DBOperationRead)
	m.RecordDBOperation(DBOperationUpdate, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dbErrorsCounter.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbErrorsCounter.WithLabelValues("read")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.dbOperationTiming))
}
