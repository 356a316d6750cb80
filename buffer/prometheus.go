package buffer

import "github.com/prometheus/client_golang/prometheus"

// Collector bridges an engine's metrics snapshot to Prometheus. The
// engine does not register anything itself; hosts that want scraping
// register a Collector on their own registry:
//
//	reg.MustRegister(buffer.NewCollector(engine))
type Collector struct {
	engine *Engine

	buffered     *prometheus.Desc
	flushed      *prometheus.Desc
	dropped      *prometheus.Desc
	flushes      *prometheus.Desc
	avgFlush     *prometheus.Desc
	utilization  *prometheus.Desc
	backpressure *prometheus.Desc
	syncFallback *prometheus.Desc
	errs         *prometheus.Desc
}

// NewCollector creates a Collector for the given engine.
func NewCollector(engine *Engine) *Collector {
	ns, sub := "logcore", "buffer"
	return &Collector{
		engine: engine,
		buffered: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "entries_buffered_total"),
			"Total entries accepted into the buffer", nil, nil),
		flushed: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "entries_flushed_total"),
			"Total entries delivered to the sink", nil, nil),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "entries_dropped_total"),
			"Total entries dropped by capacity management or retry exhaustion", nil, nil),
		flushes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "flushes_total"),
			"Total completed flush cycles", nil, nil),
		avgFlush: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "flush_duration_avg_seconds"),
			"Rolling average flush duration", nil, nil),
		utilization: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "utilization_ratio"),
			"Current buffer occupancy over hard capacity", nil, nil),
		backpressure: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "backpressure_events_total"),
			"Total submissions that hit the hard capacity", nil, nil),
		syncFallback: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "sync_fallback_events_total"),
			"Total entries that bypassed buffering", nil, nil),
		errs: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "errors_total"),
			"Total swallowed delivery errors", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.buffered
	ch <- c.flushed
	ch <- c.dropped
	ch <- c.flushes
	ch <- c.avgFlush
	ch <- c.utilization
	ch <- c.backpressure
	ch <- c.syncFallback
	ch <- c.errs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Metrics()
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.CounterValue, float64(s.EntriesBuffered))
	ch <- prometheus.MustNewConstMetric(c.flushed, prometheus.CounterValue, float64(s.EntriesFlushed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.EntriesDropped))
	ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(s.FlushCount))
	ch <- prometheus.MustNewConstMetric(c.avgFlush, prometheus.GaugeValue, s.AverageFlushTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, s.BufferUtilization)
	ch <- prometheus.MustNewConstMetric(c.backpressure, prometheus.CounterValue, float64(s.BackpressureEvents))
	ch <- prometheus.MustNewConstMetric(c.syncFallback, prometheus.CounterValue, float64(s.SyncFallbackEvents))
	ch <- prometheus.MustNewConstMetric(c.errs, prometheus.CounterValue, float64(s.ErrorCount))
}
