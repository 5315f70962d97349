package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTurnMetricsObserve(t *testing.T) {
	m := NewTurnMetrics(prometheus.NewRegistry())
	m.ObserveTurn("name_lookup")
	m.ObserveTurn("name_lookup")
	m.ObserveTurn("clinical_query")
	m.ObserveFallback("not_configured")
	m.ObserveGenerationFailure()
	m.ObserveCall("retriever", 0.2, nil)
	m.ObserveCall("generation", 1.5, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("name_lookup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackTotal.WithLabelValues("not_configured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationFails))
	assert.Equal(t, 2, testutil.CollectAndCount(m.callLatency))
}

func TestTurnMetricsNilSafe(t *testing.T) {
	var m *TurnMetrics
	m.ObserveTurn("x")
	m.ObserveFallback("x")
	m.ObserveGenerationFailure()
	m.ObserveCall("x", 1, nil)
}
