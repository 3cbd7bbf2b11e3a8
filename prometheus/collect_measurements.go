package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudhut/lagtracker/tracker"
)

func (e *Exporter) collectMeasurements(ch chan<- prometheus.Metric) bool {
	if e.latest.Count() == 0 {
		return false
	}

	for item := range e.latest.IterBuffered() {
		m, ok := item.Val.(tracker.Measurement)
		if !ok {
			continue
		}
		labels := []string{m.Log, m.Group, m.PartitionTag()}
		ch <- prometheus.MustNewConstMetric(e.groupLag, prometheus.GaugeValue, float64(m.Lag), labels...)
		ch <- prometheus.MustNewConstMetric(e.groupPos, prometheus.GaugeValue, float64(m.LowerOffset), labels...)
		ch <- prometheus.MustNewConstMetric(e.groupEnd, prometheus.GaugeValue, float64(m.UpperOffset), labels...)

		available := 0.0
		if m.Available() {
			available = 1.0
			ch <- prometheus.MustNewConstMetric(e.groupLatency, prometheus.GaugeValue, float64(m.LatencyMs)/1000, labels...)
		}
		ch <- prometheus.MustNewConstMetric(e.available, prometheus.GaugeValue, available, labels...)
	}
	return true
}
