package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/checkpoint"
	"github.com/cloudhut/lagtracker/lag"
	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
	"github.com/cloudhut/lagtracker/record"
)

const baseTs int64 = 1_700_000_000_000

// fakeClock advances its time by the waited duration and fires immediately.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// blockingClock only fires for non positive durations.
type blockingClock struct{}

func (blockingClock) Now() time.Time { return time.UnixMilli(baseTs) }
func (blockingClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- time.UnixMilli(baseTs)
	}
	return ch
}

type outputFunc func(ctx context.Context, measurements []Measurement) error

func (f outputFunc) Emit(ctx context.Context, measurements []Measurement) error {
	return f(ctx, measurements)
}

type fixture struct {
	manager     *logstore.MemoryManager
	checkpoints *checkpoint.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := logstore.NewMemoryManager()
	require.NoError(t, m.CreateLog("latency", 2))
	return &fixture{manager: m, checkpoints: checkpoint.NewMemoryStore()}
}

// createLog appends count watermarked records to every partition and commits group at committed.
func (f *fixture) createLog(t *testing.T, name string, partitions, count int, group string, committed int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.manager.CreateLog(name, partitions))
	for p := 0; p < partitions; p++ {
		for i := 0; i < count; i++ {
			rec := record.Record{Key: fmt.Sprintf("%d-%d", p, i), Watermark: position.WatermarkOfTimestamp(baseTs + int64(i)*1000)}
			_, err := f.manager.Append(ctx, name, p, rec.Message())
			require.NoError(t, err)
		}
		lp := position.LogPartition{Name: name, Partition: p}
		require.NoError(t, f.manager.Commit(ctx, group, position.LogOffset{Partition: lp, Offset: committed}))
	}
}

func (f *fixture) newTracker(t *testing.T, cfg Config, extra ...Output) *Tracker {
	t.Helper()
	require.NoError(t, cfg.Validate())

	var calcCfg lag.Config
	calcCfg.SetDefaults()
	calc := lag.NewCalculator(calcCfg, f.manager, record.NewRegistry(), zap.NewNop())

	var filterCfg logstore.FilterConfig
	filterCfg.SetDefaults()
	filter, err := logstore.NewFilter(filterCfg)
	require.NoError(t, err)

	logOutput, err := NewLogOutput(context.Background(), f.manager, "latency", zap.NewNop())
	require.NoError(t, err)

	tr := New(cfg, f.manager, calc, filter, f.checkpoints, append([]Output{logOutput}, extra...), zap.NewNop())
	tr.clock = &fakeClock{now: time.UnixMilli(baseTs + 60_000)}
	return tr
}

func (f *fixture) outputRecords(t *testing.T) []*logstore.LogRecord {
	t.Helper()
	ctx := context.Background()
	tailer, err := f.manager.CreateTailer(ctx, "", position.LogPartition{Name: "latency", Partition: 0},
		position.LogPartition{Name: "latency", Partition: 1})
	require.NoError(t, err)
	defer tailer.Close()

	var records []*logstore.LogRecord
	for {
		rec, err := tailer.Read(ctx, time.Millisecond)
		require.NoError(t, err)
		if rec == nil {
			return records
		}
		records = append(records, rec)
	}
}

func testConfig(count int, logs ...string) Config {
	var cfg Config
	cfg.SetDefaults()
	cfg.LogNames = logs
	cfg.OutputLog = "latency"
	cfg.Interval = time.Second
	cfg.Count = count
	return cfg
}

func TestTracker_CountIsHonored(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	tr := f.newTracker(t, testConfig(3, "orders"))

	require.NoError(t, tr.Run(context.Background()))
	assert.Equal(t, StateTerminated, tr.State())
	assert.Equal(t, int64(3), tr.Ticks())

	records := f.outputRecords(t)
	require.Len(t, records, 3)

	registry := record.NewRegistry()
	for _, rec := range records {
		key, err := position.DecodeKey(string(rec.Message.Key))
		require.NoError(t, err)
		assert.Equal(t, position.LogPartitionGroup{Group: "billing", Name: "orders", Partition: 0}, key)

		var m Measurement
		require.NoError(t, json.Unmarshal(rec.Message.Value, &m))
		assert.Equal(t, int64(6), m.Lag)
		assert.Equal(t, baseTs+3000, m.Lower)
		assert.Equal(t, baseTs+9000, m.Upper)
		assert.Equal(t, int64(6000), m.LatencyMs)
		assert.Equal(t, tr.ID(), m.TrackerID)

		watermark, err := registry.WatermarkOf(rec.Message)
		require.NoError(t, err)
		assert.Equal(t, m.Upper, watermark)
	}

	state, err := f.checkpoints.Load(context.Background(), "lagtracker")
	require.NoError(t, err)
	cfg := testConfig(3, "orders")
	assert.Equal(t, checkpoint.State{
		Fingerprint: cfg.Fingerprint(), Count: 3, Remaining: 0, Ticks: 3, LastFire: state.LastFire,
	}, state)
}

func TestTracker_ZeroCountTerminatesOnFirstFire(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	tr := f.newTracker(t, testConfig(0, "orders"))

	require.NoError(t, tr.Run(context.Background()))
	assert.Equal(t, StateTerminated, tr.State())
	assert.Equal(t, int64(0), tr.Ticks())
	assert.Empty(t, f.outputRecords(t))
}

func TestTracker_CancellationBetweenTicks(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 2, 5, "billing", 2)

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	cancelling := outputFunc(func(ctx context.Context, measurements []Measurement) error {
		emitted++
		cancel()
		// the tick keeps a usable context even though the run was cancelled
		return ctx.Err()
	})
	tr := f.newTracker(t, testConfig(Unbounded, "orders"), cancelling)
	tr.clock = blockingClock{}

	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, StateTerminated, tr.State())
	assert.Equal(t, 1, emitted)
	assert.Equal(t, int64(1), tr.Ticks())
	assert.Len(t, f.outputRecords(t), 2)
}

func TestTracker_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 1, 5, "billing", 2)
	tr := f.newTracker(t, testConfig(Unbounded, "orders"))
	tr.clock = blockingClock{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, StateTerminated, tr.State())
	assert.Empty(t, f.outputRecords(t))
}

func TestTracker_SkipsFailingTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)

	require.NoError(t, f.manager.CreateLog("raw", 1))
	for i := 0; i < 3; i++ {
		_, err := f.manager.Append(ctx, "raw", 0, logstore.Message{Value: []byte("plain")})
		require.NoError(t, err)
	}
	lp := position.LogPartition{Name: "raw", Partition: 0}
	require.NoError(t, f.manager.Commit(ctx, "billing", position.LogOffset{Partition: lp, Offset: 1}))

	var measured []Measurement
	collect := outputFunc(func(_ context.Context, measurements []Measurement) error {
		measured = append(measured, measurements...)
		return nil
	})
	tr := f.newTracker(t, testConfig(1, "raw", "missing", "orders"), collect)

	require.NoError(t, tr.Run(ctx))
	require.Len(t, tr.targets, 2)
	assert.Len(t, f.outputRecords(t), 1)

	require.Len(t, measured, 2)
	assert.True(t, measured[0].IsAggregate())
	assert.Equal(t, "ALL", measured[0].PartitionTag())
	assert.Equal(t, "orders", measured[0].Log)
	assert.Equal(t, "0", measured[1].PartitionTag())
}

func TestTracker_OutputErrorDoesNotStopTick(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	failing := outputFunc(func(context.Context, []Measurement) error { return fmt.Errorf("backend down") })

	tr := f.newTracker(t, testConfig(2, "orders"))
	tr.outputs = append([]Output{failing}, tr.outputs...)

	require.NoError(t, tr.Run(context.Background()))
	assert.Len(t, f.outputRecords(t), 2)
}

func TestTracker_AllLogs(t *testing.T) {
	f := newFixture(t)
	f.createLog(t, "orders", 2, 3, "billing", 1)
	f.createLog(t, "payments", 1, 3, "billing", 1)
	f.createLog(t, "_internal", 1, 3, "billing", 1)
	tr := f.newTracker(t, testConfig(0, AllLogs))

	require.NoError(t, tr.Run(context.Background()))
	require.Len(t, tr.targets, 2)
	assert.Equal(t, "orders", tr.targets[0].log)
	assert.Len(t, tr.targets[0].partitions, 2)
	assert.Equal(t, "payments", tr.targets[1].log)
}

func TestTracker_RestoresCheckpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	cfg := testConfig(3, "orders")
	require.NoError(t, f.checkpoints.Save(ctx, "lagtracker", checkpoint.State{
		Fingerprint: cfg.Fingerprint(), Count: 3, Remaining: 1, Ticks: 2, LastFire: time.UnixMilli(baseTs),
	}))

	tr := f.newTracker(t, cfg)
	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, int64(3), tr.Ticks())
	assert.Len(t, f.outputRecords(t), 1)
}

func TestTracker_IgnoresCheckpointOfOtherCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	cfg := testConfig(2, "orders")
	require.NoError(t, f.checkpoints.Save(ctx, "lagtracker", checkpoint.State{
		Fingerprint: cfg.Fingerprint(), Count: 5, Remaining: 1, Ticks: 4,
	}))

	tr := f.newTracker(t, cfg)
	require.NoError(t, tr.Run(ctx))
	assert.Equal(t, int64(2), tr.Ticks())
	assert.Len(t, f.outputRecords(t), 2)
}

func TestTracker_IgnoresCheckpointOfOtherLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createLog(t, "orders", 1, 10, "billing", 4)
	f.createLog(t, "payments", 1, 10, "billing", 4)

	// the first run on orders is interrupted after one tick and leaves a checkpoint with two remaining
	runCtx, cancel := context.WithCancel(ctx)
	interrupting := outputFunc(func(context.Context, []Measurement) error {
		cancel()
		return nil
	})
	first := f.newTracker(t, testConfig(3, "orders"), interrupting)
	first.clock = blockingClock{}
	require.NoError(t, first.Run(runCtx))
	require.Equal(t, int64(1), first.Ticks())

	state, err := f.checkpoints.Load(ctx, "lagtracker")
	require.NoError(t, err)
	require.Equal(t, 2, state.Remaining)

	second := f.newTracker(t, testConfig(3, "payments"))
	require.NoError(t, second.Run(ctx))
	assert.Equal(t, int64(3), second.Ticks())

	// payments replaced the checkpoint, a new run on orders starts over
	restarted := f.newTracker(t, testConfig(3, "orders"))
	require.NoError(t, restarted.Run(ctx))
	assert.Equal(t, int64(3), restarted.Ticks())
}

func TestConfig_Fingerprint(t *testing.T) {
	a := testConfig(3, "orders", "payments")
	b := testConfig(1, "payments", "orders")
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := testConfig(3, "orders")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d := testConfig(3, "orders", "payments")
	d.OutputLog = "other"
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())

	// a name boundary is not ambiguous
	e := testConfig(3, "orderspayments")
	assert.NotEqual(t, a.Fingerprint(), e.Fingerprint())
}

func TestConfig_Validate(t *testing.T) {
	tt := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "no logs", modify: func(c *Config) { c.LogNames = nil }, wantErr: true},
		{name: "all combined", modify: func(c *Config) { c.LogNames = []string{"all", "orders"} }, wantErr: true},
		{name: "zero interval", modify: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "negative interval", modify: func(c *Config) { c.Interval = -time.Second }, wantErr: true},
		{name: "count below unbounded", modify: func(c *Config) { c.Count = -2 }, wantErr: true},
		{name: "zero count", modify: func(c *Config) { c.Count = 0 }},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(Unbounded, "orders")
			test.modify(&cfg)
			err := cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
