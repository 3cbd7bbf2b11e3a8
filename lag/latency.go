package lag

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

// ComputeLatency returns the latency of a group for every partition of a log. The lower timestamp is the watermark
// of the last processed record (committed - 1), the upper one the watermark of the last appended record or now if
// the partition is empty. Partitions without processed records, or whose reads timed out, have a zero Lower.
//
// Records whose watermark can't be extracted fail the whole call with logstore.ErrUnsupportedRecordType.
func (c *Calculator) ComputeLatency(ctx context.Context, name, group string, watermarkOf WatermarkFunc) ([]position.Latency, error) {
	if watermarkOf == nil {
		watermarkOf = c.WatermarkOf
	}
	offsets, err := c.fetchOffsets(ctx, name, group)
	if err != nil {
		return nil, err
	}

	latencies := make([]position.Latency, len(offsets.ends))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(c.cfg.MaxConcurrentReads)
	for i := range latencies {
		partition := i
		grp.Go(func() error {
			lp := position.LogPartition{Name: name, Partition: partition}
			latency, err := c.partitionLatency(grpCtx, lp, group, offsets, watermarkOf)
			if err != nil {
				return err
			}
			latencies[partition] = latency
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return latencies, nil
}

func (c *Calculator) partitionLatency(ctx context.Context, lp position.LogPartition, group string, offsets partitionOffsets,
	watermarkOf WatermarkFunc) (position.Latency, error) {
	start, end := offsets.starts[lp.Partition], offsets.ends[lp.Partition]
	committed := offsets.lower(lp.Partition)
	latency := position.Latency{Lag: position.NewLogLag(committed, end)}

	if end <= start {
		latency.Upper = c.now().UnixMilli()
		return latency, nil
	}

	tailer, err := c.manager.CreateTailer(ctx, group, lp)
	if err != nil {
		return position.Latency{}, fmt.Errorf("failed to create tailer on %v: %w", lp, err)
	}
	defer func() {
		if err := tailer.Close(); err != nil {
			c.logger.Warn("failed to close tailer", zap.Stringer("partition", lp), zap.Error(err))
		}
	}()

	head, err := c.readLast(ctx, tailer, lp, start, end-1)
	if err != nil {
		return position.Latency{}, err
	}
	if head == nil {
		c.logger.Warn("no head record could be read, latency is unknown",
			zap.Stringer("partition", lp), zap.String("group", group))
		latency.Upper = c.now().UnixMilli()
		return latency, nil
	}
	upper, err := watermarkOfRecord(watermarkOf, head)
	if err != nil {
		return position.Latency{}, err
	}
	latency.Upper = upper

	switch {
	case committed <= start:
		// nothing processed yet
		return latency, nil
	case latency.Lag.Lag == 0:
		latency.Lower = upper
		latency.Key = string(head.Message.Key)
		return latency, nil
	}

	processed, err := c.readLast(ctx, tailer, lp, start, committed-1)
	if err != nil {
		return position.Latency{}, err
	}
	if processed == nil {
		c.logger.Warn("no processed record could be read, latency is unknown",
			zap.Stringer("partition", lp), zap.String("group", group))
		return latency, nil
	}
	lower, err := watermarkOfRecord(watermarkOf, processed)
	if err != nil {
		return position.Latency{}, err
	}
	latency.Lower = lower
	latency.Key = string(processed.Message.Key)
	return latency, nil
}

// maxLookback bounds how many offsets readLast steps back from its target.
const maxLookback = 256

// readLast returns the record with the highest offset <= target and >= floor. Offsets may be missing from a
// partition (transaction markers, compaction), so a read after seeking to the target can return a later record or
// nothing at all. The window before the target is doubled until a record is found. Nil is returned if no record
// was found within maxLookback offsets or the reads timed out.
func (c *Calculator) readLast(ctx context.Context, tailer logstore.Tailer, lp position.LogPartition, floor, target int64) (*logstore.LogRecord, error) {
	for window := int64(1); ; window *= 2 {
		from := target - window + 1
		if from < floor {
			from = floor
		}
		last, err := c.readWindow(ctx, tailer, position.LogOffset{Partition: lp, Offset: from}, target)
		if err != nil || last != nil {
			return last, err
		}
		if from == floor || window >= maxLookback {
			return nil, nil
		}
		c.logger.Debug("no record at or before target, widening window",
			zap.Stringer("partition", lp), zap.Int64("target", target), zap.Int64("window", window*2))
	}
}

// readWindow reads from offset on and returns the last record whose offset is <= target.
func (c *Calculator) readWindow(ctx context.Context, tailer logstore.Tailer, from position.LogOffset, target int64) (*logstore.LogRecord, error) {
	if err := tailer.Seek(from); err != nil {
		return nil, fmt.Errorf("failed to seek to %v: %w", from, err)
	}
	var last *logstore.LogRecord
	for {
		rec, err := tailer.Read(ctx, c.cfg.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to read record after %v: %w", from, err)
		}
		if rec == nil || rec.Offset.Offset > target {
			return last, nil
		}
		last = rec
		if rec.Offset.Offset == target {
			return last, nil
		}
	}
}

func watermarkOfRecord(watermarkOf WatermarkFunc, rec *logstore.LogRecord) (int64, error) {
	ts, err := watermarkOf(rec.Message)
	if err != nil {
		if errors.Is(err, logstore.ErrUnsupportedRecordType) {
			return 0, fmt.Errorf("record at %v: %w", rec.Offset, err)
		}
		return 0, fmt.Errorf("%w: record at %v: %v", logstore.ErrUnsupportedRecordType, rec.Offset, err)
	}
	return ts, nil
}
