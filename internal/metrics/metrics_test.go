package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QueueOpened()
		m.QueueClosed(true)
		m.FrameEnqueued("text")
		m.RequestFinished("ok")
		m.ObserveStage("LLM", time.Second)
		m.ObserveFirstFrame("audio", time.Second)
	})
}

func TestQueueGaugeAndEvictions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QueueOpened()
	m.QueueOpened()
	m.QueueClosed(false)
	m.QueueClosed(true)
	m.QueueOpened()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeQueues))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictedQueues))

	m.RequestFinished("error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
