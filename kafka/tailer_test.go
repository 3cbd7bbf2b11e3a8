package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

func TestTailer_SeekDropsBufferedRecordsOfPartition(t *testing.T) {
	p0 := position.LogPartition{Name: "orders", Partition: 0}
	p1 := position.LogPartition{Name: "orders", Partition: 1}
	tl := &tailer{
		logger:    zap.NewNop(),
		positions: map[position.LogPartition]int64{p0: 5, p1: 3},
		buffer: []*kgo.Record{
			{Topic: "orders", Partition: 0, Offset: 5},
			{Topic: "orders", Partition: 1, Offset: 3},
			{Topic: "orders", Partition: 0, Offset: 6},
		},
	}

	require.NoError(t, tl.Seek(position.LogOffset{Partition: p0, Offset: 1}))
	assert.Equal(t, int64(1), tl.positions[p0])
	assert.Equal(t, int64(3), tl.positions[p1])
	require.Len(t, tl.buffer, 1)
	assert.Equal(t, int32(1), tl.buffer[0].Partition)

	err := tl.Seek(position.LogOffset{Partition: position.LogPartition{Name: "orders", Partition: 2}, Offset: 0})
	assert.ErrorIs(t, err, logstore.ErrInvalidArgument)
}
