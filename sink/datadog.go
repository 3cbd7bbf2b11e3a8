package sink

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/tracker"
)

// Datadog pushes measurements as gauges to the Datadog metrics intake. Every target reports the series lag, latency,
// pos and end, tagged by stream, group and partition.
type Datadog struct {
	cfg    DatadogConfig
	api    *datadogV2.MetricsApi
	logger *zap.Logger
}

var _ tracker.Output = (*Datadog)(nil)

func NewDatadog(cfg DatadogConfig, logger *zap.Logger) *Datadog {
	configuration := datadog.NewConfiguration()
	configuration.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newDatadog(cfg, configuration, logger)
}

func newDatadog(cfg DatadogConfig, configuration *datadog.Configuration, logger *zap.Logger) *Datadog {
	return &Datadog{
		cfg:    cfg,
		api:    datadogV2.NewMetricsApi(datadog.NewAPIClient(configuration)),
		logger: logger.Named("datadog"),
	}
}

func (d *Datadog) Emit(ctx context.Context, measurements []tracker.Measurement) error {
	series := d.series(measurements)
	if len(series) == 0 {
		return nil
	}

	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, map[string]datadog.APIKey{
		"apiKeyAuth": {Key: d.cfg.APIKey},
	})
	ctx = context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{
		"site": d.cfg.Site,
	})

	payload := datadogV2.MetricPayload{Series: series}
	resp, httpResp, err := d.api.SubmitMetrics(ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		status := 0
		if httpResp != nil {
			status = httpResp.StatusCode
		}
		return fmt.Errorf("failed to submit %d series to datadog (status %d): %w", len(series), status, err)
	}
	if len(resp.Errors) > 0 {
		d.logger.Warn("datadog accepted the payload with errors", zap.Strings("errors", resp.Errors))
	}
	d.logger.Debug("submitted series", zap.Int("series", len(series)))
	return nil
}

func (d *Datadog) series(measurements []tracker.Measurement) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(measurements)*4)
	for _, m := range measurements {
		tags := append([]string{
			"stream:" + m.Log,
			"group:" + m.Group,
			"partition:" + m.PartitionTag(),
		}, d.cfg.Tags...)
		ts := m.MeasuredAt.Unix()

		gauge := func(name string, value float64, unit string) datadogV2.MetricSeries {
			s := datadogV2.MetricSeries{
				Metric: d.cfg.MetricPrefix + "." + name,
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: []datadogV2.MetricPoint{{
					Timestamp: datadog.PtrInt64(ts),
					Value:     datadog.PtrFloat64(value),
				}},
				Tags: tags,
			}
			if unit != "" {
				s.Unit = datadog.PtrString(unit)
			}
			return s
		}

		series = append(series,
			gauge("lag", float64(m.Lag), ""),
			gauge("pos", float64(m.LowerOffset), ""),
			gauge("end", float64(m.UpperOffset), ""),
		)
		if m.Available() {
			series = append(series, gauge("latency", float64(m.LatencyMs), "millisecond"))
		}
	}
	return series
}
