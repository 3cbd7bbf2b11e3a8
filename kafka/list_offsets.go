package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
)

type listOffsetsFunc func(context.Context, ...string) (kadm.ListedOffsets, error)

func (m *LogManager) EndOffsets(ctx context.Context, name string) ([]int64, error) {
	return m.listOffsets(ctx, name, m.svc.Admin.ListEndOffsets, "end")
}

func (m *LogManager) StartOffsets(ctx context.Context, name string) ([]int64, error) {
	return m.listOffsets(ctx, name, m.svc.Admin.ListStartOffsets, "start")
}

// OffsetsForTimestamp resolves the first offset of each partition whose record timestamp is >= t. Kafka answers with
// the end offset when no record is recent enough, such partitions are reported as logstore.NoOffset.
func (m *LogManager) OffsetsForTimestamp(ctx context.Context, name string, t time.Time) ([]int64, error) {
	ends, err := m.EndOffsets(ctx, name)
	if err != nil {
		return nil, err
	}

	listFunc := func(ctx context.Context, topics ...string) (kadm.ListedOffsets, error) {
		return m.svc.Admin.ListOffsetsAfterMilli(ctx, t.UnixMilli(), topics...)
	}
	offsets, err := m.listOffsets(ctx, name, listFunc, "timestamp")
	if err != nil {
		return nil, err
	}

	for i, offset := range offsets {
		if offset < 0 || offset >= ends[i] {
			offsets[i] = logstore.NoOffset
		}
	}
	return offsets, nil
}

// listOffsets lists offsets of all partitions of a log, indexed by partition. Shard errors are tolerated as long as
// every partition of the requested log has been answered.
func (m *LogManager) listOffsets(ctx context.Context, name string, listFunc listOffsetsFunc, offsetType string) ([]int64, error) {
	size, err := m.Size(ctx, name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
	defer cancel()

	listedOffsets, err := listFunc(ctx, name)
	if err != nil {
		var se *kadm.ShardErrors
		if !errors.As(err, &se) {
			return nil, fmt.Errorf("failed to list %s offsets: %w", offsetType, err)
		}

		if se.AllFailed {
			return nil, fmt.Errorf("failed to list %s offsets, all shard responses failed: %w", offsetType, err)
		}
		m.logger.Info(fmt.Sprintf("failed to list %s offset from some shards", offsetType), zap.Int("failed_shards", len(se.Errs)))
		for _, shardErr := range se.Errs {
			m.logger.Warn(fmt.Sprintf("shard error for listing %s offsets", offsetType),
				zap.Int32("broker_id", shardErr.Broker.NodeID),
				zap.Error(shardErr.Err))
		}
	}

	offsets := make([]int64, size)
	partitions := listedOffsets[name]
	for i := range offsets {
		listed, exists := partitions[int32(i)]
		if !exists {
			return nil, fmt.Errorf("failed to list %s offset of partition %d of log '%v': no response", offsetType, i, name)
		}
		if listed.Err != nil {
			return nil, fmt.Errorf("failed to list %s offset of partition %d of log '%v': %w", offsetType, i, name, listed.Err)
		}
		offsets[i] = listed.Offset
	}
	return offsets, nil
}
