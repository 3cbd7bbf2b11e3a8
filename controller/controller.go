package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

// Controller moves the committed positions of consumer groups. Moves are committed partition by partition, there
// is no atomicity across partitions.
type Controller struct {
	manager    logstore.Manager
	calculator *lag.Calculator
	logger     *zap.Logger
}

// Result reports the outcome of a move. Before is the per partition lag measured before anything was committed.
type Result struct {
	Before     []position.LogLag
	Committed  []position.LogOffset
	Unresolved []position.LogPartition
}

// New creates a controller. The calculator measures the lag before a move and must read the same manager.
func New(manager logstore.Manager, calculator *lag.Calculator, logger *zap.Logger) *Controller {
	return &Controller{
		manager:    manager,
		calculator: calculator,
		logger:     logger.Named("position_controller"),
	}
}

// Reset moves the group to the earliest retained offset of every partition.
func (c *Controller) Reset(ctx context.Context, name, group string) (Result, error) {
	return c.moveTo(ctx, name, group, "reset", c.manager.StartOffsets)
}

// AdvanceToEnd moves the group to the head of every partition, skipping all available records.
func (c *Controller) AdvanceToEnd(ctx context.Context, name, group string) (Result, error) {
	return c.moveTo(ctx, name, group, "to_end", c.manager.EndOffsets)
}

// SeekToTimestamp moves every partition to the earliest record whose timestamp is >= t. Partitions without such a
// record are left untouched and reported as unresolved. If no partition resolves nothing is committed and
// logstore.ErrNotFound is returned.
func (c *Controller) SeekToTimestamp(ctx context.Context, name, group string, t time.Time) (Result, error) {
	lookup := func(ctx context.Context, name string) ([]int64, error) {
		return c.manager.OffsetsForTimestamp(ctx, name, t)
	}
	return c.moveTo(ctx, name, group, "to_timestamp", lookup)
}

type offsetLookup func(ctx context.Context, name string) ([]int64, error)

func (c *Controller) moveTo(ctx context.Context, name, group, action string, lookup offsetLookup) (Result, error) {
	if group == "" {
		return Result{}, fmt.Errorf("%w: group must not be empty", logstore.ErrInvalidArgument)
	}
	exists, err := c.manager.Exists(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check if log '%v' exists: %w", name, err)
	}
	if !exists {
		return Result{}, fmt.Errorf("%w: log '%v'", logstore.ErrNotFound, name)
	}

	before, err := c.calculator.ComputeLagPerPartition(ctx, name, group)
	if err != nil {
		return Result{}, err
	}
	targets, err := lookup(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve %s offsets of log '%v': %w", action, name, err)
	}
	if len(targets) != len(before) {
		return Result{}, fmt.Errorf("partition count of log '%v' changed while resolving offsets", name)
	}

	res := Result{Before: before}
	for partition, offset := range targets {
		lp := position.LogPartition{Name: name, Partition: partition}
		if offset == logstore.NoOffset {
			res.Unresolved = append(res.Unresolved, lp)
		}
	}
	if len(res.Unresolved) == len(targets) {
		return res, fmt.Errorf("%w: no partition of log '%v' resolved a %s offset", logstore.ErrNotFound, name, action)
	}

	for partition, offset := range targets {
		if offset == logstore.NoOffset {
			continue
		}
		target := position.LogOffset{Partition: position.LogPartition{Name: name, Partition: partition}, Offset: offset}
		if err := c.manager.Commit(ctx, group, target); err != nil {
			if !errors.Is(err, logstore.ErrCommitFailed) {
				err = fmt.Errorf("%w: %v", logstore.ErrCommitFailed, err)
			}
			return res, fmt.Errorf("failed to commit %v for group '%v': %w", target, group, err)
		}
		res.Committed = append(res.Committed, target)
		c.logger.Info("moved committed offset",
			zap.String("action", action),
			zap.String("log", name),
			zap.String("group", group),
			zap.Int("partition", partition),
			zap.Int64("from", before[partition].LowerOffset),
			zap.Int64("to", offset))
	}
	return res, nil
}
