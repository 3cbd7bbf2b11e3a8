package lag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
	"github.com/cloudhut/lagtracker/record"
)

// WatermarkFunc extracts the watermark timestamp (ms) of a stored message.
type WatermarkFunc func(msg logstore.Message) (int64, error)

// Calculator computes offset based lag and watermark based latency of consumer groups. It never commits.
type Calculator struct {
	manager  logstore.Manager
	registry *record.Registry
	cfg      Config
	logger   *zap.Logger

	now func() time.Time
}

func NewCalculator(cfg Config, manager logstore.Manager, registry *record.Registry, logger *zap.Logger) *Calculator {
	return &Calculator{
		manager:  manager,
		registry: registry,
		cfg:      cfg,
		logger:   logger.Named("lag_calculator"),
		now:      time.Now,
	}
}

// WatermarkOf is the default WatermarkFunc, backed by the injected decoder registry.
func (c *Calculator) WatermarkOf(msg logstore.Message) (int64, error) {
	return c.registry.WatermarkOf(msg)
}

// Groups returns the consumer groups registered on a log, sorted by name.
func (c *Calculator) Groups(ctx context.Context, name string) ([]string, error) {
	groups, err := c.manager.ListConsumerGroups(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumer groups of log '%v': %w", name, err)
	}
	sort.Strings(groups)
	return groups, nil
}

// ComputeLagPerPartition returns the lag of a group for every partition of a log, indexed by partition. Partitions
// the group never committed count from the start of the partition.
func (c *Calculator) ComputeLagPerPartition(ctx context.Context, name, group string) ([]position.LogLag, error) {
	offsets, err := c.fetchOffsets(ctx, name, group)
	if err != nil {
		return nil, err
	}
	lags := make([]position.LogLag, len(offsets.ends))
	for i := range lags {
		lags[i] = position.NewLogLag(offsets.lower(i), offsets.ends[i])
	}
	return lags, nil
}

// ComputeLag returns the lag of a group summed over all partitions of a log.
func (c *Calculator) ComputeLag(ctx context.Context, name, group string) (position.LogLag, error) {
	lags, err := c.ComputeLagPerPartition(ctx, name, group)
	if err != nil {
		return position.LogLag{}, err
	}
	return position.AggregateLag(lags), nil
}

type partitionOffsets struct {
	starts    []int64
	ends      []int64
	committed []int64
}

func (o partitionOffsets) lower(partition int) int64 {
	if o.committed[partition] == logstore.NoOffset {
		return o.starts[partition]
	}
	return o.committed[partition]
}

func (c *Calculator) fetchOffsets(ctx context.Context, name, group string) (partitionOffsets, error) {
	starts, err := c.manager.StartOffsets(ctx, name)
	if err != nil {
		return partitionOffsets{}, fmt.Errorf("failed to get start offsets of log '%v': %w", name, err)
	}
	ends, err := c.manager.EndOffsets(ctx, name)
	if err != nil {
		return partitionOffsets{}, fmt.Errorf("failed to get end offsets of log '%v': %w", name, err)
	}
	committed, err := c.manager.CommittedOffsets(ctx, name, group)
	if err != nil {
		return partitionOffsets{}, fmt.Errorf("failed to get committed offsets of group '%v' on log '%v': %w", group, name, err)
	}
	if len(starts) != len(ends) || len(committed) != len(ends) {
		return partitionOffsets{}, fmt.Errorf("partition count of log '%v' changed while fetching offsets", name)
	}
	return partitionOffsets{starts: starts, ends: ends, committed: committed}, nil
}
