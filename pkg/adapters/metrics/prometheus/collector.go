package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsStarted      prometheus.Counter
	runsFinished     *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	itemsPublished   *prometheus.CounterVec
	publishDuration  prometheus.Histogram
	waitSeconds      prometheus.Histogram
	activeRuns       prometheus.Gauge
	sinkDropped      *prometheus.CounterVec
	runItemsTotal    prometheus.Gauge
	runItemsDone     prometheus.Gauge
	runStatus        *prometheus.GaugeVec
	itemsPerRunTotal prometheus.Histogram
}

// NewCollector creates a collector registered on the default registry
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on reg
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dapub_runs_started_total",
				Help: "Total number of runs started",
			},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dapub_runs_finished_total",
				Help: "Total number of runs finished by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dapub_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
			},
			[]string{"status"},
		),
		itemsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dapub_items_published_total",
				Help: "Total number of publish attempts by outcome",
			},
			[]string{"status"},
		),
		publishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dapub_publish_duration_seconds",
				Help:    "Duration of a single publish call in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		waitSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dapub_wait_seconds",
				Help:    "Computed wait between two items in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dapub_active_runs",
				Help: "Number of currently active runs",
			},
		),
		sinkDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dapub_sink_events_dropped_total",
				Help: "Progress events dropped because a sink queue was full",
			},
			[]string{"sink"},
		),
		runItemsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dapub_run_items_total",
				Help: "Number of items in the current run",
			},
		),
		runItemsDone: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dapub_run_items_processed",
				Help: "Number of items processed in the current run",
			},
		),
		runStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dapub_run_status",
				Help: "1 for the status the current run is in, 0 otherwise",
			},
			[]string{"status"},
		),
		itemsPerRunTotal: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dapub_run_items",
				Help:    "Number of items submitted per run",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

var knownStatuses = []string{"idle", "running", "waiting", "stopping", "stopped", "completed", "failed"}

// RecordRunStarted records a run start
func (c *Collector) RecordRunStarted(totalItems int) {
	c.runsStarted.Inc()
	c.itemsPerRunTotal.Observe(float64(totalItems))
}

// RecordRunFinished records the end of a run
func (c *Collector) RecordRunFinished(status string, duration time.Duration) {
	c.runsFinished.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordItemPublished records one publish attempt
func (c *Collector) RecordItemPublished(status string, duration time.Duration) {
	c.itemsPublished.WithLabelValues(status).Inc()
	c.publishDuration.Observe(duration.Seconds())
}

// RecordWait records a computed inter-item wait
func (c *Collector) RecordWait(seconds int) {
	c.waitSeconds.Observe(float64(seconds))
}

// SetActiveRuns sets the number of active runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordSinkDropped counts an event dropped by a sink queue
func (c *Collector) RecordSinkDropped(sink string) {
	c.sinkDropped.WithLabelValues(sink).Inc()
}

// RecordRunState exports the progress of the current run
func (c *Collector) RecordRunState(status string, currentIndex, totalItems int) {
	c.runItemsTotal.Set(float64(totalItems))
	c.runItemsDone.Set(float64(currentIndex))
	for _, s := range knownStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		c.runStatus.WithLabelValues(s).Set(v)
	}
}
