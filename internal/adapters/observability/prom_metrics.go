package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pingu-73/telemetry-pipeline/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	counterDefs := []struct{ name, help string }{
		{"pitwall_frames_received_total", "Raw datagrams received from the transport."},
		{"pitwall_bytes_received_total", "Raw bytes received from the transport."},
		{"pitwall_malformed_frames_total", "Frames discarded: truncated or unrecognized layout."},
		{"pitwall_version_mismatch_total", "Frames discarded: recognized tag, unsupported version."},
		{"pitwall_checksum_failures_total", "Frames discarded: integrity check failed."},
		{"pitwall_stale_samples_total", "Samples discarded: duplicate or out-of-order sequence number."},
		{"pitwall_samples_admitted_total", "Samples admitted into the ring buffer."},
		{"pitwall_samples_rejected_total", "Samples rejected at admission under backpressure."},
		{"pitwall_samples_evicted_total", "Buffered samples evicted by higher-priority arrivals."},
		{"pitwall_samples_processed_total", "Samples fully processed."},
		{"pitwall_deadline_missed_total", "Processed samples that exceeded the latency budget."},
		{"pitwall_processing_errors_total", "Per-sample computation faults recorded in outcomes."},
		{"pitwall_decisions_total", "Strategy decisions appended."},
		{"pitwall_snapshots_published_total", "Snapshots pushed to the live-view boundary."},
		{"pitwall_publish_failures_total", "Snapshot publications that failed."},
		{"pitwall_recorder_dropped_total", "Frames the session recorder could not keep up with."},
		{"pitwall_sink_write_failures_total", "Outcome sink batches that failed to persist."},
	}
	gaugeDefs := []struct{ name, help string }{
		{"pitwall_ring_occupancy", "Live samples currently held in the ring buffer."},
		{"pitwall_recorder_size_bytes", "Size of the session recording on disk."},
		{"pitwall_connected_viewers", "Currently connected live-view clients."},
	}

	counters := make(map[string]prometheus.Counter, len(counterDefs))
	collectors := make([]prometheus.Collector, 0, len(counterDefs)+len(gaugeDefs)+1)
	for _, def := range counterDefs {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: def.name, Help: def.help})
		counters[def.name] = c
		collectors = append(collectors, c)
	}

	gauges := make(map[string]prometheus.Gauge, len(gaugeDefs))
	for _, def := range gaugeDefs {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: def.name, Help: def.help})
		gauges[def.name] = g
		collectors = append(collectors, g)
	}

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pitwall_process_latency_seconds",
		Help:    "Admission-to-dispatch latency per processed sample.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	collectors = append(collectors, latency)

	prometheus.MustRegister(collectors...)

	return &PromObs{
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			"pitwall_process_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
