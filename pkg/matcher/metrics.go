package matcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the matcher. A nil *Metrics records
// nothing.
type Metrics struct {
	scans          *prometheus.CounterVec
	matches        *prometheus.CounterVec
	bytesScanned   *prometheus.CounterVec
	prefilterSkips prometheus.Counter
	truncated      prometheus.Counter
	openStreams    prometheus.Gauge
	scanDuration   *prometheus.HistogramVec
}

// NewMetrics creates the matcher collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorscan_matcher_scans_total",
				Help: "Total number of scans performed",
			},
			[]string{"mode", "outcome"},
		),

		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorscan_matcher_matches_total",
				Help: "Total number of matches reported",
			},
			[]string{"rule"},
		),

		bytesScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorscan_matcher_bytes_scanned_total",
				Help: "Total number of bytes passed to the engine",
			},
			[]string{"mode"},
		),

		prefilterSkips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorscan_matcher_prefilter_skips_total",
				Help: "Blobs skipped because no rule keyword occurred",
			},
		),

		truncated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vectorscan_matcher_truncated_total",
				Help: "Scans stopped at the per-blob match limit",
			},
		),

		openStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vectorscan_matcher_open_streams",
				Help: "Number of currently open streams",
			},
		),

		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorscan_matcher_scan_duration_seconds",
				Help:    "Duration of engine scans in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to 2.6s
			},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) recordScan(mode string, outcome string, bytes int, d time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(mode, outcome).Inc()
	m.bytesScanned.WithLabelValues(mode).Add(float64(bytes))
	m.scanDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) recordMatch(ruleID string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(ruleID).Inc()
}

func (m *Metrics) recordPrefilterSkip() {
	if m == nil {
		return
	}
	m.prefilterSkips.Inc()
}

func (m *Metrics) recordTruncated() {
	if m == nil {
		return
	}
	m.truncated.Inc()
}

func (m *Metrics) streamOpened() {
	if m == nil {
		return
	}
	m.openStreams.Inc()
}

func (m *Metrics) streamClosed() {
	if m == nil {
		return
	}
	m.openStreams.Dec()
}
