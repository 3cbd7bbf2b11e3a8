package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
	"github.com/cloudhut/lagtracker/record"
)

// Output receives the measurements of every tick. Aggregates are included and flagged by IsAggregate.
type Output interface {
	Emit(ctx context.Context, measurements []Measurement) error
}

// LogOutput appends one record per partition with an available latency to a log. Records are spread over the
// partitions of the output log by hashing their key.
type LogOutput struct {
	manager logstore.Manager
	name    string
	size    int
	logger  *zap.Logger
}

func NewLogOutput(ctx context.Context, manager logstore.Manager, name string, logger *zap.Logger) (*LogOutput, error) {
	size, err := manager.Size(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get size of output log '%v': %w", name, err)
	}
	return &LogOutput{
		manager: manager,
		name:    name,
		size:    size,
		logger:  logger.Named("log_output").With(zap.String("output_log", name)),
	}, nil
}

func (o *LogOutput) Emit(ctx context.Context, measurements []Measurement) error {
	appended := 0
	for _, m := range measurements {
		if m.IsAggregate() || !m.Available() {
			continue
		}
		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode measurement: %w", err)
		}
		rec := record.Record{
			Key:         m.RecordKey(),
			Value:       value,
			Watermark:   position.WatermarkOfTimestamp(m.Upper),
			ContentType: record.ContentTypeLatency,
		}
		partition := int(xxhash.Sum64String(rec.Key) % uint64(o.size))
		if _, err := o.manager.Append(ctx, o.name, partition, rec.Message()); err != nil {
			return fmt.Errorf("failed to append measurement of '%v': %w", rec.Key, err)
		}
		appended++
	}
	o.logger.Debug("appended measurements", zap.Int("records", appended))
	return nil
}
