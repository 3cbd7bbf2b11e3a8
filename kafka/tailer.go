package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

// CreateTailer creates a reader that starts at the group's committed offsets, or at the start of partitions the
// group never committed. The tailer consumes assigned partitions directly and never joins or commits for the group.
func (m *LogManager) CreateTailer(ctx context.Context, group string, partitions ...position.LogPartition) (logstore.Tailer, error) {
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: tailer needs at least one partition", logstore.ErrInvalidArgument)
	}

	positions := make(map[position.LogPartition]int64, len(partitions))
	committedByLog := make(map[string][]int64)
	startsByLog := make(map[string][]int64)
	for _, lp := range partitions {
		if _, fetched := startsByLog[lp.Name]; !fetched {
			starts, err := m.StartOffsets(ctx, lp.Name)
			if err != nil {
				return nil, err
			}
			startsByLog[lp.Name] = starts
			if group != "" {
				committed, err := m.CommittedOffsets(ctx, lp.Name, group)
				if err != nil {
					return nil, err
				}
				committedByLog[lp.Name] = committed
			}
		}

		starts := startsByLog[lp.Name]
		if lp.Partition < 0 || lp.Partition >= len(starts) {
			return nil, fmt.Errorf("%w: partition %v does not exist", logstore.ErrInvalidArgument, lp)
		}
		offset := starts[lp.Partition]
		if committed, ok := committedByLog[lp.Name]; ok && committed[lp.Partition] != logstore.NoOffset {
			offset = committed[lp.Partition]
		}
		positions[lp] = offset
	}

	return &tailer{
		svc:       m.svc,
		logger:    m.logger.With(zap.String("group", group)),
		positions: positions,
	}, nil
}

type tailer struct {
	svc    *Service
	logger *zap.Logger

	positions map[position.LogPartition]int64
	client    *kgo.Client
	buffer    []*kgo.Record
}

// Seek moves a partition of the tailer. Once consuming, the client is moved in place with SetOffsets, which also
// drops records it already buffered for the partition.
func (t *tailer) Seek(offset position.LogOffset) error {
	lp := offset.Partition
	if _, assigned := t.positions[lp]; !assigned {
		return fmt.Errorf("%w: partition %v is not assigned to this tailer", logstore.ErrInvalidArgument, lp)
	}
	t.positions[lp] = offset.Offset

	buffered := t.buffer[:0]
	for _, rec := range t.buffer {
		if rec.Topic != lp.Name || int(rec.Partition) != lp.Partition {
			buffered = append(buffered, rec)
		}
	}
	t.buffer = buffered

	if t.client != nil {
		t.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			lp.Name: {int32(lp.Partition): {Epoch: -1, Offset: offset.Offset}},
		})
	}
	return nil
}

func (t *tailer) Read(ctx context.Context, timeout time.Duration) (*logstore.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", logstore.ErrInterrupted, err)
	}
	if t.client == nil {
		if err := t.connect(); err != nil {
			return nil, err
		}
	}

	if len(t.buffer) == 0 {
		pollCtx, cancel := context.WithTimeout(ctx, timeout)
		fetches := t.client.PollFetches(pollCtx)
		cancel()

		for _, fetchErr := range fetches.Errors() {
			switch {
			case errors.Is(fetchErr.Err, context.DeadlineExceeded):
				// no record within the timeout
			case errors.Is(fetchErr.Err, context.Canceled):
				return nil, fmt.Errorf("%w: %v", logstore.ErrInterrupted, fetchErr.Err)
			default:
				return nil, fmt.Errorf("failed to fetch records from topic '%v' partition %d: %w",
					fetchErr.Topic, fetchErr.Partition, fetchErr.Err)
			}
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			t.buffer = append(t.buffer, rec)
		})
	}

	for len(t.buffer) > 0 {
		rec := t.buffer[0]
		t.buffer = t.buffer[1:]

		lp := position.LogPartition{Name: rec.Topic, Partition: int(rec.Partition)}
		if rec.Offset < t.positions[lp] {
			// fetched before a seek past it
			continue
		}
		t.positions[lp] = rec.Offset + 1
		return &logstore.LogRecord{
			Message: messageFromRecord(rec),
			Offset:  position.LogOffset{Partition: lp, Offset: rec.Offset},
		}, nil
	}
	return nil, nil
}

func (t *tailer) Close() error {
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
	return nil
}

// connect creates the consuming client, starting at the current positions.
func (t *tailer) connect() error {
	consume := make(map[string]map[int32]kgo.Offset)
	for lp, offset := range t.positions {
		if _, exists := consume[lp.Name]; !exists {
			consume[lp.Name] = make(map[int32]kgo.Offset)
		}
		consume[lp.Name][int32(lp.Partition)] = kgo.NewOffset().At(offset)
	}

	client, err := t.svc.NewClient(
		kgo.ConsumePartitions(consume),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return err
	}
	t.logger.Debug("consuming partitions from tailer positions", zap.Int("partition_count", len(t.positions)))
	t.client = client
	return nil
}

func messageFromRecord(rec *kgo.Record) logstore.Message {
	msg := logstore.Message{
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}
	for _, h := range rec.Headers {
		msg.Headers = append(msg.Headers, logstore.Header{Key: h.Key, Value: h.Value})
	}
	return msg
}
