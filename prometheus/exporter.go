package prometheus

import (
	"context"
	"os"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/tracker"
)

// Exporter is the Prometheus exporter that implements the prometheus.Collector interface. It is a tracker output:
// the latest measurement of every group partition is kept and exposed on each scrape.
type Exporter struct {
	cfg    Config
	logger *zap.Logger

	// latest is a map of the most recent measurement per partition. The measurement's record key (or the one of the
	// aggregate) is used as map key.
	latest cmap.ConcurrentMap

	// Exporter metrics
	exporterUp *prometheus.Desc
	ticks      prometheus.Counter

	// Measurement metrics
	groupLag     *prometheus.Desc
	groupLatency *prometheus.Desc
	groupPos     *prometheus.Desc
	groupEnd     *prometheus.Desc
	available    *prometheus.Desc
}

var _ tracker.Output = (*Exporter)(nil)

func NewExporter(cfg Config, logger *zap.Logger) *Exporter {
	return &Exporter{cfg: cfg, logger: logger.Named("prometheus"), latest: cmap.New()}
}

// InitializeMetrics creates all metric descriptors and registers the exporter's own counters.
func (e *Exporter) InitializeMetrics(registerer prometheus.Registerer) {
	e.exporterUp = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "exporter", "up"),
		"Build info about this Prometheus Exporter. Gauge value is 0 if no measurement has been emitted yet.",
		nil,
		map[string]string{"version": os.Getenv("EXPORTER_VERSION")},
	)
	e.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: e.cfg.Namespace,
		Name:      "tracker_ticks_total",
		Help:      "Number of ticks whose measurements have been handed to this exporter",
	})
	registerer.MustRegister(e.ticks)

	labels := []string{"log", "group", "partition"}
	e.groupLag = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "group", "lag"),
		"Number of records between the committed offset of a consumer group and the end of the log. Partition 'ALL' is the sum over all partitions.",
		labels,
		nil,
	)
	e.groupLatency = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "group", "latency_seconds"),
		"Watermark distance between the last processed and the last appended record. Only reported if a record has been processed.",
		labels,
		nil,
	)
	e.groupPos = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "group", "pos"),
		"Committed offset of a consumer group. Partition 'ALL' reports the lowest committed offset.",
		labels,
		nil,
	)
	e.groupEnd = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "group", "end"),
		"End offset of the log partition. Partition 'ALL' reports the highest end offset.",
		labels,
		nil,
	)
	e.available = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "group", "latency_available"),
		"1 if the latency of a partition could be determined, otherwise 0",
		labels,
		nil,
	)
}

// Emit implements tracker.Output.
func (e *Exporter) Emit(_ context.Context, measurements []tracker.Measurement) error {
	for _, m := range measurements {
		e.latest.Set(measurementKey(m), m)
	}
	e.ticks.Inc()
	return nil
}

func measurementKey(m tracker.Measurement) string {
	if m.IsAggregate() {
		return m.Group + "\x00" + m.Log + "\x00" + m.PartitionTag()
	}
	return m.RecordKey()
}

// Describe implements the prometheus.Collector interface. It sends the
// super-set of all possible descriptors of metrics collected by this
// Collector to the provided channel and returns once the last descriptor
// has been sent.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.exporterUp
	ch <- e.groupLag
	ch <- e.groupLatency
	ch <- e.groupPos
	ch <- e.groupEnd
	ch <- e.available
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ok := e.collectMeasurements(ch)
	if ok {
		ch <- prometheus.MustNewConstMetric(e.exporterUp, prometheus.GaugeValue, 1.0)
	} else {
		ch <- prometheus.MustNewConstMetric(e.exporterUp, prometheus.GaugeValue, 0.0)
	}
}
