// Package metrics holds the Prometheus collectors for the streaming engine.
//
// All methods are safe to call on a nil *Metrics so components can run
// without a registry in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "voicechain"

type Metrics struct {
	activeQueues   prometheus.Gauge
	evictedQueues  prometheus.Counter
	requests       *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	firstFrame     *prometheus.HistogramVec
	enqueuedFrames *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeQueues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_queues",
			Help:      "Request queues currently registered",
		}),
		evictedQueues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_queues_total",
			Help:      "Request queues removed by the idle sweep",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent inside one stage invocation, downstream stages included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"module"}),
		firstFrame: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_frame_seconds",
			Help:      "Latency from request start to the first frame of a kind",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"kind"}),
		enqueuedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_frames_total",
			Help:      "Output messages appended to request queues",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.activeQueues,
			m.evictedQueues,
			m.requests,
			m.stageDuration,
			m.firstFrame,
			m.enqueuedFrames,
		)
	}
	return m
}

// NewRegistry returns a registry with the Go runtime collectors and the
// engine metrics already registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

func (m *Metrics) QueueOpened() {
	if m == nil {
		return
	}
	m.activeQueues.Inc()
}

func (m *Metrics) QueueClosed(evicted bool) {
	if m == nil {
		return
	}
	m.activeQueues.Dec()
	if evicted {
		m.evictedQueues.Inc()
	}
}

func (m *Metrics) FrameEnqueued(kind string) {
	if m == nil {
		return
	}
	m.enqueuedFrames.WithLabelValues(kind).Inc()
}

func (m *Metrics) RequestFinished(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStage(module string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (m *Metrics) ObserveFirstFrame(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.firstFrame.WithLabelValues(kind).Observe(d.Seconds())
}
