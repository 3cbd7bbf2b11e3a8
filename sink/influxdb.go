package sink

import (
	"context"
	"fmt"

	client "github.com/influxdata/influxdb/client/v2"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/tracker"
)

// InfluxDB writes one point per measurement, tagged by log, group and partition.
type InfluxDB struct {
	cfg    InfluxDBConfig
	client client.Client
	logger *zap.Logger
}

var _ tracker.Output = (*InfluxDB)(nil)

func NewInfluxDB(cfg InfluxDBConfig, logger *zap.Logger) (*InfluxDB, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create influxdb client: %w", err)
	}
	return &InfluxDB{cfg: cfg, client: c, logger: logger.Named("influxdb")}, nil
}

func (i *InfluxDB) Emit(_ context.Context, measurements []tracker.Measurement) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  i.cfg.Database,
		Precision: "ms",
	})
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	for _, m := range measurements {
		tags := map[string]string{
			"log":       m.Log,
			"group":     m.Group,
			"partition": m.PartitionTag(),
		}
		fields := map[string]interface{}{
			"lag":          m.Lag,
			"lower_offset": m.LowerOffset,
			"upper_offset": m.UpperOffset,
		}
		if m.Available() {
			fields["latency_ms"] = m.LatencyMs
		}

		pt, err := client.NewPoint(i.cfg.Measurement, tags, fields, m.MeasuredAt)
		if err != nil {
			i.logger.Warn("failed to create point", zap.String("log", m.Log), zap.String("group", m.Group), zap.Error(err))
			continue
		}
		bp.AddPoint(pt)
	}
	if len(bp.Points()) == 0 {
		return nil
	}

	if err := i.client.Write(bp); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(bp.Points()), err)
	}
	return nil
}

func (i *InfluxDB) Close() error {
	return i.client.Close()
}
