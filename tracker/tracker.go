package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/checkpoint"
	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

// Tracker periodically measures the latency of consumer groups and emits the measurements to its outputs. A single
// control loop owns the clock, the next fire time and the cancellation of the context passed to Run.
type Tracker struct {
	cfg    Config
	id     string
	logger *zap.Logger

	manager     logstore.Manager
	calculator  *lag.Calculator
	filter      *logstore.Filter
	checkpoints checkpoint.Store
	outputs     []Output
	clock       Clock

	state     *atomic.Int32
	remaining *atomic.Int64
	ticks     *atomic.Int64
	lastFire  time.Time

	targets []target
}

// target is a consumer group of a log, expanded into its partitions
type target struct {
	log        string
	group      string
	partitions []position.LogPartitionGroup
}

func New(cfg Config, manager logstore.Manager, calculator *lag.Calculator, filter *logstore.Filter,
	checkpoints checkpoint.Store, outputs []Output, logger *zap.Logger) *Tracker {
	id := uuid.NewString()
	return &Tracker{
		cfg:         cfg,
		id:          id,
		logger:      logger.Named("tracker").With(zap.String("tracker", cfg.Name), zap.String("tracker_id", id)),
		manager:     manager,
		calculator:  calculator,
		filter:      filter,
		checkpoints: checkpoints,
		outputs:     outputs,
		clock:       realClock{},
		state:       atomic.NewInt32(int32(StateInitializing)),
		remaining:   atomic.NewInt64(int64(cfg.Count)),
		ticks:       atomic.NewInt64(0),
	}
}

// ID is a random identifier of this tracker instance, reported in every measurement.
func (t *Tracker) ID() string {
	return t.id
}

func (t *Tracker) State() State {
	return State(t.state.Load())
}

// Ticks returns how many times the tracker measured, including ticks restored from a checkpoint.
func (t *Tracker) Ticks() int64 {
	return t.ticks.Load()
}

func (t *Tracker) setState(s State) {
	t.state.Store(int32(s))
}

// Run initializes the tracker and runs the control loop until the count is exhausted or ctx is cancelled. A tick
// that has started always completes, cancellation is not reported as error.
func (t *Tracker) Run(ctx context.Context) error {
	t.setState(StateInitializing)
	t.expandTargets(ctx)
	nextFire := t.restore(ctx)

	partitionCount := 0
	for _, tg := range t.targets {
		partitionCount += len(tg.partitions)
	}
	t.logger.Info("tracker initialized",
		zap.Int("targets", len(t.targets)),
		zap.Int("partitions", partitionCount),
		zap.Duration("interval", t.cfg.Interval),
		zap.Int64("remaining", t.remaining.Load()))

	for {
		t.setState(StateWaiting)
		select {
		case <-ctx.Done():
			t.terminate("tracker interrupted")
			return nil
		case <-t.clock.After(nextFire.Sub(t.clock.Now())):
		}
		if ctx.Err() != nil {
			t.terminate("tracker interrupted")
			return nil
		}

		if t.remaining.Load() == 0 {
			t.terminate("tracker completed its count")
			return nil
		}

		t.setState(StateMeasuring)
		firedAt := t.clock.Now()
		t.tick(context.WithoutCancel(ctx), firedAt)

		if t.remaining.Load() > 0 {
			t.remaining.Dec()
		}
		t.ticks.Inc()
		t.lastFire = firedAt
		t.saveCheckpoint(context.WithoutCancel(ctx))
		nextFire = nextFire.Add(t.cfg.Interval)
	}
}

func (t *Tracker) terminate(reason string) {
	t.setState(StateTerminated)
	t.logger.Info(reason, zap.Int64("ticks", t.ticks.Load()), zap.Int64("remaining", t.remaining.Load()))
}

// expandTargets resolves the configured logs into one target per consumer group. Logs that fail to expand are
// skipped.
func (t *Tracker) expandTargets(ctx context.Context) {
	names := t.cfg.LogNames
	if t.cfg.tracksAllLogs() {
		all, err := t.manager.ListAll(ctx)
		if err != nil {
			t.logger.Warn("failed to list logs, no log will be tracked", zap.Error(err))
			return
		}
		names = make([]string, 0, len(all))
		for _, name := range all {
			if name == t.cfg.OutputLog || !t.filter.IsLogAllowed(name) {
				continue
			}
			names = append(names, name)
		}
	}

	t.targets = nil
	for _, name := range names {
		targets, err := t.expandLog(ctx, name)
		if err != nil {
			t.logger.Warn("failed to expand log, skipping it", zap.String("log", name), zap.Error(err))
			continue
		}
		t.targets = append(t.targets, targets...)
	}
}

func (t *Tracker) expandLog(ctx context.Context, name string) ([]target, error) {
	size, err := t.manager.Size(ctx, name)
	if err != nil {
		return nil, err
	}
	groups, err := t.calculator.Groups(ctx, name)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(groups))
	for _, group := range groups {
		if !t.filter.IsGroupAllowed(group) {
			continue
		}
		tg := target{log: name, group: group, partitions: make([]position.LogPartitionGroup, size)}
		for i := range tg.partitions {
			tg.partitions[i] = position.LogPartitionGroup{Group: group, Name: name, Partition: i}
		}
		targets = append(targets, tg)
	}
	return targets, nil
}

// restore loads the checkpoint of this tracker and returns the time of the first fire. A checkpoint is only
// resumed if it was written for the same logs and output with the same count and was not exhausted.
func (t *Tracker) restore(ctx context.Context) time.Time {
	now := t.clock.Now()
	state, err := t.checkpoints.Load(ctx, t.cfg.Name)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
			t.logger.Warn("failed to load checkpoint, starting fresh", zap.Error(err))
		}
		return now
	}
	if state.Fingerprint != t.cfg.Fingerprint() || state.Count != t.cfg.Count || state.Remaining == 0 {
		t.logger.Info("ignoring checkpoint of a different or completed run",
			zap.String("checkpoint_fingerprint", state.Fingerprint),
			zap.Int("checkpoint_count", state.Count), zap.Int("checkpoint_remaining", state.Remaining))
		return now
	}

	t.remaining.Store(int64(state.Remaining))
	t.ticks.Store(state.Ticks)
	t.lastFire = state.LastFire
	t.logger.Info("restored checkpoint", zap.Int("remaining", state.Remaining), zap.Int64("ticks", state.Ticks))

	nextFire := state.LastFire.Add(t.cfg.Interval)
	if nextFire.Before(now) {
		return now
	}
	return nextFire
}

func (t *Tracker) saveCheckpoint(ctx context.Context) {
	state := checkpoint.State{
		Fingerprint: t.cfg.Fingerprint(),
		Count:       t.cfg.Count,
		Remaining:   int(t.remaining.Load()),
		Ticks:       t.ticks.Load(),
		LastFire:    t.lastFire,
	}
	if err := t.checkpoints.Save(ctx, t.cfg.Name, state); err != nil {
		t.logger.Warn("failed to save checkpoint", zap.Error(err))
	}
}

// tick measures all targets sequentially and hands the measurements to every output.
func (t *Tracker) tick(ctx context.Context, at time.Time) {
	measurements := make([]Measurement, 0)
	failed := 0
	for _, tg := range t.targets {
		latencies, err := t.calculator.ComputeLatency(ctx, tg.log, tg.group, nil)
		if err != nil {
			failed++
			t.logger.Warn("failed to measure latency, skipping target",
				zap.String("log", tg.log), zap.String("group", tg.group), zap.Error(err))
			continue
		}
		measurements = append(measurements, t.measurementsOf(tg, latencies, at)...)
	}

	for _, output := range t.outputs {
		if err := output.Emit(ctx, measurements); err != nil {
			t.logger.Warn("failed to emit measurements", zap.String("output", fmt.Sprintf("%T", output)), zap.Error(err))
		}
	}
	t.logger.Debug("tick completed",
		zap.Int64("tick", t.ticks.Load()+1),
		zap.Int("measurements", len(measurements)),
		zap.Int("failed_targets", failed))
}

// measurementsOf returns the aggregate followed by one measurement per expanded partition.
func (t *Tracker) measurementsOf(tg target, latencies []position.Latency, at time.Time) []Measurement {
	tracked := make([]position.Latency, 0, len(tg.partitions))
	res := make([]Measurement, 1, len(tg.partitions)+1)
	for _, lpg := range tg.partitions {
		if lpg.Partition >= len(latencies) {
			continue
		}
		tracked = append(tracked, latencies[lpg.Partition])
		res = append(res, newMeasurement(t.id, lpg, latencies[lpg.Partition], at))
	}
	all := position.LogPartitionGroup{Group: tg.group, Name: tg.log, Partition: AllPartitions}
	res[0] = newMeasurement(t.id, all, position.AggregateLatency(tracked), at)
	return res
}
