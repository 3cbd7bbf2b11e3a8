package logstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"

	"github.com/cloudhut/lagtracker/position"
)

// MemoryManager is a Manager that keeps logs and committed offsets in memory.
type MemoryManager struct {
	mu   sync.RWMutex
	logs map[string]*memoryLog

	// committed is a map of all committed offsets. A unique key in the format "group:log:partition" (see
	// position.EncodeKey) is used as map key, the value is the offset as int64.
	committed cmap.ConcurrentMap
}

type memoryLog struct {
	partitions []*memoryPartition
}

type memoryPartition struct {
	start    int64
	messages []Message
}

func (p *memoryPartition) end() int64 {
	return p.start + int64(len(p.messages))
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		logs:      make(map[string]*memoryLog),
		committed: cmap.New(),
	}
}

// CreateLog creates a log with the given number of partitions. Creating an existing log with the same size is a noop.
func (m *MemoryManager) CreateLog(name string, size int) error {
	if size < 1 {
		return fmt.Errorf("%w: log '%v' needs at least one partition", ErrInvalidArgument, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, exists := m.logs[name]; exists {
		if len(l.partitions) != size {
			return fmt.Errorf("%w: log '%v' already exists with %d partitions", ErrInvalidArgument, name, len(l.partitions))
		}
		return nil
	}

	l := &memoryLog{partitions: make([]*memoryPartition, size)}
	for i := range l.partitions {
		l.partitions[i] = &memoryPartition{}
	}
	m.logs[name] = l
	return nil
}

// Truncate drops all records of a partition below the given offset, like a retention policy would.
func (m *MemoryManager) Truncate(partition position.LogPartition, before int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.partition(partition)
	if err != nil {
		return err
	}
	if before <= p.start {
		return nil
	}
	if before > p.end() {
		before = p.end()
	}
	p.messages = p.messages[before-p.start:]
	p.start = before
	return nil
}

func (m *MemoryManager) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.logs[name]
	return exists, nil
}

func (m *MemoryManager) ListAll(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.logs))
	for name := range m.logs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryManager) Size(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, err := m.log(name)
	if err != nil {
		return 0, err
	}
	return len(l.partitions), nil
}

func (m *MemoryManager) ListConsumerGroups(ctx context.Context, name string) ([]string, error) {
	if _, err := m.Size(ctx, name); err != nil {
		return nil, err
	}

	groupSet := make(map[string]struct{})
	for _, key := range m.committed.Keys() {
		pg, err := position.DecodeKey(key)
		if err != nil || pg.Name != name {
			continue
		}
		groupSet[pg.Group] = struct{}{}
	}

	groups := make([]string, 0, len(groupSet))
	for group := range groupSet {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups, nil
}

func (m *MemoryManager) Append(_ context.Context, name string, partition int, msg Message) (position.LogOffset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lp := position.LogPartition{Name: name, Partition: partition}
	p, err := m.partition(lp)
	if err != nil {
		return position.LogOffset{}, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	offset := p.end()
	p.messages = append(p.messages, msg)
	return position.LogOffset{Partition: lp, Offset: offset}, nil
}

func (m *MemoryManager) EndOffsets(_ context.Context, name string) ([]int64, error) {
	return m.offsets(name, func(_ int, p *memoryPartition) int64 { return p.end() })
}

func (m *MemoryManager) StartOffsets(_ context.Context, name string) ([]int64, error) {
	return m.offsets(name, func(_ int, p *memoryPartition) int64 { return p.start })
}

func (m *MemoryManager) CommittedOffsets(_ context.Context, name, group string) ([]int64, error) {
	return m.offsets(name, func(i int, _ *memoryPartition) int64 {
		return m.committedOffset(group, name, i)
	})
}

func (m *MemoryManager) OffsetsForTimestamp(_ context.Context, name string, t time.Time) ([]int64, error) {
	return m.offsets(name, func(_ int, p *memoryPartition) int64 {
		for i, msg := range p.messages {
			if !msg.Timestamp.Before(t) {
				return p.start + int64(i)
			}
		}
		return NoOffset
	})
}

func (m *MemoryManager) Commit(_ context.Context, group string, offset position.LogOffset) error {
	m.mu.RLock()
	_, err := m.partition(offset.Partition)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if group == "" || offset.Offset < 0 {
		return fmt.Errorf("%w: cannot commit offset %v for group '%v'", ErrInvalidArgument, offset, group)
	}
	m.committed.Set(position.EncodeKey(group, offset.Partition.Name, offset.Partition.Partition), offset.Offset)
	return nil
}

func (m *MemoryManager) CreateTailer(_ context.Context, group string, partitions ...position.LogPartition) (Tailer, error) {
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: tailer needs at least one partition", ErrInvalidArgument)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	positions := make(map[position.LogPartition]int64, len(partitions))
	for _, lp := range partitions {
		p, err := m.partition(lp)
		if err != nil {
			return nil, err
		}
		offset := m.committedOffset(group, lp.Name, lp.Partition)
		if offset == NoOffset {
			offset = p.start
		}
		positions[lp] = offset
	}
	return &memoryTailer{manager: m, partitions: partitions, positions: positions}, nil
}

func (m *MemoryManager) Close() error {
	return nil
}

func (m *MemoryManager) offsets(name string, fn func(int, *memoryPartition) int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, err := m.log(name)
	if err != nil {
		return nil, err
	}
	res := make([]int64, len(l.partitions))
	for i, p := range l.partitions {
		res[i] = fn(i, p)
	}
	return res, nil
}

func (m *MemoryManager) committedOffset(group, name string, partition int) int64 {
	val, exists := m.committed.Get(position.EncodeKey(group, name, partition))
	if !exists {
		return NoOffset
	}
	return val.(int64)
}

func (m *MemoryManager) log(name string) (*memoryLog, error) {
	l, exists := m.logs[name]
	if !exists {
		return nil, fmt.Errorf("%w: log '%v'", ErrNotFound, name)
	}
	return l, nil
}

func (m *MemoryManager) partition(lp position.LogPartition) (*memoryPartition, error) {
	l, err := m.log(lp.Name)
	if err != nil {
		return nil, err
	}
	if lp.Partition < 0 || lp.Partition >= len(l.partitions) {
		return nil, fmt.Errorf("%w: partition %d of log '%v' with %d partitions", ErrInvalidArgument,
			lp.Partition, lp.Name, len(l.partitions))
	}
	return l.partitions[lp.Partition], nil
}

// memoryTailer reads partitions round robin. It never blocks, the read timeout is ignored.
type memoryTailer struct {
	manager    *MemoryManager
	partitions []position.LogPartition
	positions  map[position.LogPartition]int64
	next       int
	closed     bool
}

func (t *memoryTailer) Seek(offset position.LogOffset) error {
	if _, assigned := t.positions[offset.Partition]; !assigned {
		return fmt.Errorf("%w: partition %v is not assigned to this tailer", ErrInvalidArgument, offset.Partition)
	}
	t.positions[offset.Partition] = offset.Offset
	return nil
}

func (t *memoryTailer) Read(ctx context.Context, _ time.Duration) (*LogRecord, error) {
	if t.closed {
		return nil, fmt.Errorf("tailer is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
	}

	t.manager.mu.RLock()
	defer t.manager.mu.RUnlock()
	for i := 0; i < len(t.partitions); i++ {
		lp := t.partitions[(t.next+i)%len(t.partitions)]
		p, err := t.manager.partition(lp)
		if err != nil {
			return nil, err
		}
		offset := t.positions[lp]
		if offset < p.start {
			offset = p.start
		}
		if offset >= p.end() {
			continue
		}
		t.positions[lp] = offset + 1
		t.next = (t.next + i + 1) % len(t.partitions)
		return &LogRecord{
			Message: p.messages[offset-p.start],
			Offset:  position.LogOffset{Partition: lp, Offset: offset},
		}, nil
	}
	return nil, nil
}

func (t *memoryTailer) Close() error {
	t.closed = true
	return nil
}
