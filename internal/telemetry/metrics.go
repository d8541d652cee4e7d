// Package telemetry provides the logger's ambient observability: a
// Prometheus metrics set for the write/rotate/extract/parse paths and a
// logrus-backed logger.Tracker that turns the write path's fire-and-forget
// diagnostics into structured log lines and counters. Grounded on
// internal/metrics/metrics.go (promauto factory, prometheus.Registerer
// injection for test isolation) and the teacher's internal/audit package
// (the fire-and-forget event-sink shape; its S3-bucket/encryption
// vocabulary had no analogue here so its files weren't carried forward,
// only its shape), renamed to the logger's own
// input/rotate/writeback/archive/extract/parse operations.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics holds every Prometheus series this package exposes.
type Metrics struct {
	recordsWritten   *prometheus.CounterVec
	bytesWritten     *prometheus.CounterVec
	chunkWrites      *prometheus.CounterVec
	rotations        *prometheus.CounterVec
	writeErrors      *prometheus.CounterVec
	archiveUploads   *prometheus.CounterVec
	archiveErrors    *prometheus.CounterVec
	extractDuration  *prometheus.HistogramVec
	parseDuration    *prometheus.HistogramVec
	chunkWriteLatency *prometheus.HistogramVec
}

// New registers this package's metrics against reg, the same pattern
// internal/metrics.NewMetricsWithRegistry uses so tests can pass
// prometheus.NewRegistry() instead of colliding on the global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		recordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_records_written_total",
			Help: "Total number of records accepted by Logger.Log, by domain.",
		}, []string{"domain"}),
		bytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_bytes_written_total",
			Help: "Total compressed, encrypted bytes handed to the IO worker, by domain.",
		}, []string{"domain"}),
		chunkWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_chunk_writes_total",
			Help: "Total chunks written to a logfile, by domain.",
		}, []string{"domain"}),
		rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_rotations_total",
			Help: "Total buffer-side rotations, by domain and trigger (input, rotate, writeback).",
		}, []string{"domain", "trigger"}),
		writeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_write_errors_total",
			Help: "Total errors reported to a Tracker from the write path, by domain.",
		}, []string{"domain"}),
		archiveUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_archive_uploads_total",
			Help: "Total logfiles successfully archived, by domain.",
		}, []string{"domain"}),
		archiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinenut_archive_errors_total",
			Help: "Total archive upload failures, by domain.",
		}, []string{"domain"}),
		extractDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinenut_extract_duration_seconds",
			Help:    "Wall-clock duration of extract.Extract calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
		parseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinenut_parse_duration_seconds",
			Help:    "Wall-clock duration of parse.Parse calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
		chunkWriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinenut_chunk_write_latency_seconds",
			Help:    "Latency of a single chunk write to disk, from the IO worker.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"domain"}),
	}
}

// NewDefault registers against prometheus.DefaultRegisterer, for the
// common case of a single Logger per process.
func NewDefault() *Metrics { return New(prometheus.DefaultRegisterer) }

func (m *Metrics) RecordLog(domain string, bytes int) {
	m.recordsWritten.WithLabelValues(domain).Inc()
	_ = bytes
}

func (m *Metrics) RecordChunkWrite(domain string, n int, d time.Duration) {
	m.chunkWrites.WithLabelValues(domain).Inc()
	m.bytesWritten.WithLabelValues(domain).Add(float64(n))
	m.chunkWriteLatency.WithLabelValues(domain).Observe(d.Seconds())
}

func (m *Metrics) RecordRotation(domain, trigger string) {
	m.rotations.WithLabelValues(domain, trigger).Inc()
}

func (m *Metrics) RecordWriteError(domain string) {
	m.writeErrors.WithLabelValues(domain).Inc()
}

func (m *Metrics) RecordArchiveUpload(domain string, err error) {
	if err != nil {
		m.archiveErrors.WithLabelValues(domain).Inc()
		return
	}
	m.archiveUploads.WithLabelValues(domain).Inc()
}

func (m *Metrics) ObserveExtract(domain string, d time.Duration) {
	m.extractDuration.WithLabelValues(domain).Observe(d.Seconds())
}

func (m *Metrics) ObserveParse(domain string, d time.Duration) {
	m.parseDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// Handler exposes prometheus.DefaultGatherer's series for scraping; series
// registered through New against a different Registerer are not served.
func (m *Metrics) Handler() http.Handler { return promhttp.Handler() }
