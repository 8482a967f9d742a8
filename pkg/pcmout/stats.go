// ABOUTME: Per-stream counters and optional prometheus metrics
// ABOUTME: The pump bumps both; Stats snapshots the per-stream side
package pcmout

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is a snapshot of a stream's pump counters.
type Stats struct {
	FramesWritten uint64
	Recoveries    uint64
	FatalErrors   uint64
	EmptyFetches  uint64
	Writes        uint64
}

// streamStats is written by the pump and read from anywhere.
type streamStats struct {
	framesWritten atomic.Uint64
	recoveries    atomic.Uint64
	fatalErrors   atomic.Uint64
	emptyFetches  atomic.Uint64
	writes        atomic.Uint64
}

// Stats returns the stream's counters.
func (s *Stream) Stats() Stats {
	return Stats{
		FramesWritten: s.stats.framesWritten.Load(),
		Recoveries:    s.stats.recoveries.Load(),
		FatalErrors:   s.stats.fatalErrors.Load(),
		EmptyFetches:  s.stats.emptyFetches.Load(),
		Writes:        s.stats.writes.Load(),
	}
}

// Metrics aggregates pump activity of every stream into a prometheus
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	framesWritten prometheus.Counter
	recoveries    prometheus.Counter
	fatalErrors   prometheus.Counter
	emptyFetches  prometheus.Counter
	streams       prometheus.Gauge
	writeDelay    prometheus.Histogram
}

// NewMetrics creates the pump metrics on a fresh registry that also carries
// the process and Go runtime collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &Metrics{
		reg: reg,

		framesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "pcmout_frames_written",
			Help: "Total frames accepted by output devices",
		}),
		recoveries: f.NewCounter(prometheus.CounterOpts{
			Name: "pcmout_recoveries",
			Help: "Device errors recovered inline",
		}),
		fatalErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pcmout_fatal_errors",
			Help: "Streams hard stopped after an unrecoverable device error",
		}),
		emptyFetches: f.NewCounter(prometheus.CounterOpts{
			Name: "pcmout_empty_fetches",
			Help: "Data source fetches that returned no audio",
		}),
		streams: f.NewGauge(prometheus.GaugeOpts{
			Name: "pcmout_streams",
			Help: "Streams currently owned by a manager",
		}),
		writeDelay: f.NewHistogram(prometheus.HistogramOpts{
			Name: "pcmout_write_delay_milliseconds",
			Help: "Delay scheduled before the next device write",
			Buckets: []float64{
				0, 1, 2, 5, 10, 20, 40, 80, 160, 320,
			},
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}),
	)
}

func (m *Metrics) addFrames(n int) {
	if m != nil {
		m.framesWritten.Add(float64(n))
	}
}

func (m *Metrics) recovered() {
	if m != nil {
		m.recoveries.Inc()
	}
}

func (m *Metrics) fatal() {
	if m != nil {
		m.fatalErrors.Inc()
	}
}

func (m *Metrics) emptyFetch() {
	if m != nil {
		m.emptyFetches.Inc()
	}
}

func (m *Metrics) scheduled(d time.Duration) {
	if m != nil {
		m.writeDelay.Observe(float64(d) / float64(time.Millisecond))
	}
}

func (m *Metrics) streamAdded() {
	if m != nil {
		m.streams.Inc()
	}
}

func (m *Metrics) streamRemoved() {
	if m != nil {
		m.streams.Dec()
	}
}
