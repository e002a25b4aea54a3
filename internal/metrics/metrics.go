// Package metrics exports the engine's I/O counters to Prometheus.
//
// The realtime path only does atomic increments; this collector samples
// those counters when /metrics is scraped, so the engine never touches the
// prometheus client itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/petitstrawberry/prism/internal/engine"
)

// Collector adapts engine.Stats to the prometheus.Collector interface.
type Collector struct {
	eng *engine.Engine

	clientWrites  *prometheus.Desc
	droppedWrites *prometheus.Desc
	mixWrites     *prometheus.Desc
	captureReads  *prometheus.Desc
	staleZeroed   *prometheus.Desc
	activeClients *prometheus.Desc
}

// NewCollector creates a collector sampling the given engine.
func NewCollector(eng *engine.Engine) *Collector {
	return &Collector{
		eng: eng,
		clientWrites: prometheus.NewDesc("prism_client_writes_total",
			"Completed client writes into the bus.", nil, nil),
		droppedWrites: prometheus.NewDesc("prism_dropped_writes_total",
			"Client writes dropped (unrouted, evicted, or invalid offset).", nil, nil),
		mixWrites: prometheus.NewDesc("prism_mix_writes_total",
			"System mix writes into the reserved channels.", nil, nil),
		captureReads: prometheus.NewDesc("prism_capture_reads_total",
			"Full-bus capture reads served.", nil, nil),
		staleZeroed: prometheus.NewDesc("prism_stale_pairs_zeroed_total",
			"Channel pairs zeroed by the staleness check.", nil, nil),
		activeClients: prometheus.NewDesc("prism_active_clients",
			"Clients currently attached to the bus.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clientWrites
	ch <- c.droppedWrites
	ch <- c.mixWrites
	ch <- c.captureReads
	ch <- c.staleZeroed
	ch <- c.activeClients
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.eng.Stats()
	ch <- prometheus.MustNewConstMetric(c.clientWrites, prometheus.CounterValue, float64(st.ClientWrites))
	ch <- prometheus.MustNewConstMetric(c.droppedWrites, prometheus.CounterValue, float64(st.DroppedWrites))
	ch <- prometheus.MustNewConstMetric(c.mixWrites, prometheus.CounterValue, float64(st.MixWrites))
	ch <- prometheus.MustNewConstMetric(c.captureReads, prometheus.CounterValue, float64(st.CaptureReads))
	ch <- prometheus.MustNewConstMetric(c.staleZeroed, prometheus.CounterValue, float64(st.StaleZeroed))
	ch <- prometheus.MustNewConstMetric(c.activeClients, prometheus.GaugeValue, float64(st.ActiveClients))
}
