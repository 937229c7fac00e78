package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveExtraction("success", 10*time.Millisecond)
	m.ObserveExtraction("success", 5*time.Millisecond)
	m.ObserveExtraction("bad_request", time.Millisecond)
	m.AddTokensCharged(2)
	m.IncUsageRecordFailure("store")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionRequests.WithLabelValues("bad_request")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensCharged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageRecordFailures.WithLabelValues("store")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction("success", time.Second)
		m.AddTokensCharged(1)
		m.IncUsageRecorded("browser")
		m.IncUsageRecordFailure("kafka")
		m.IncRateLimitRejection()
		m.IncAuthFailure()
		m.IncCircuitTransition("redis", "open")
	})
}
