package logstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudhut/lagtracker/position"
)

func TestMemoryManager_Offsets(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()
	require.NoError(t, m.CreateLog("orders", 2))
	require.NoError(t, m.CreateLog("orders", 2))
	assert.ErrorIs(t, m.CreateLog("orders", 3), ErrInvalidArgument)

	for i := 0; i < 3; i++ {
		offset, err := m.Append(ctx, "orders", 1, Message{Key: []byte("k")})
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset.Offset)
	}

	ends, err := m.EndOffsets(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3}, ends)

	committed, err := m.CommittedOffsets(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Equal(t, []int64{NoOffset, NoOffset}, committed)

	lp := position.LogPartition{Name: "orders", Partition: 1}
	require.NoError(t, m.Commit(ctx, "billing", position.LogOffset{Partition: lp, Offset: 2}))
	committed, err = m.CommittedOffsets(ctx, "orders", "billing")
	require.NoError(t, err)
	assert.Equal(t, []int64{NoOffset, 2}, committed)

	groups, err := m.ListConsumerGroups(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, groups)

	require.NoError(t, m.Truncate(lp, 2))
	starts, err := m.StartOffsets(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2}, starts)
}

func TestMemoryManager_NotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	exists, err := m.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.EndOffsets(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Append(ctx, "missing", 0, Message{})
	assert.ErrorIs(t, err, ErrNotFound)
	err = m.Commit(ctx, "g", position.LogOffset{Partition: position.LogPartition{Name: "missing"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryManager_OffsetsForTimestamp(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()
	require.NoError(t, m.CreateLog("events", 2))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := m.Append(ctx, "events", 0, Message{Timestamp: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	offsets, err := m.OffsetsForTimestamp(ctx, "events", base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, NoOffset}, offsets)

	offsets, err = m.OffsetsForTimestamp(ctx, "events", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{NoOffset, NoOffset}, offsets)
}

func TestMemoryTailer(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()
	require.NoError(t, m.CreateLog("events", 2))
	for i := 0; i < 2; i++ {
		_, err := m.Append(ctx, "events", 0, Message{Value: []byte{byte(i)}})
		require.NoError(t, err)
	}
	_, err := m.Append(ctx, "events", 1, Message{Value: []byte{9}})
	require.NoError(t, err)

	p0 := position.LogPartition{Name: "events", Partition: 0}
	p1 := position.LogPartition{Name: "events", Partition: 1}
	require.NoError(t, m.Commit(ctx, "g", position.LogOffset{Partition: p0, Offset: 1}))

	tailer, err := m.CreateTailer(ctx, "g", p0, p1)
	require.NoError(t, err)
	defer tailer.Close()

	seen := make(map[position.LogOffset]bool)
	for {
		rec, err := tailer.Read(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		if rec == nil {
			break
		}
		seen[rec.Offset] = true
	}
	assert.Equal(t, map[position.LogOffset]bool{
		{Partition: p0, Offset: 1}: true,
		{Partition: p1, Offset: 0}: true,
	}, seen)

	require.NoError(t, tailer.Seek(position.LogOffset{Partition: p0, Offset: 0}))
	rec, err := tailer.Read(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte{0}, rec.Message.Value)

	err = tailer.Seek(position.LogOffset{Partition: position.LogPartition{Name: "other"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// reading never commits
	committed, err := m.CommittedOffsets(ctx, "events", "g")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, NoOffset}, committed)
}
