//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"go.uber.org/zap"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

type LogManagerSuite struct {
	suite.Suite

	container *redpanda.Container
	svc       *Service
	manager   *LogManager
}

func TestLogManagerSuite(t *testing.T) {
	suite.Run(t, new(LogManagerSuite))
}

func (s *LogManagerSuite) SetupSuite() {
	require := s.Require()
	ctx := context.Background()

	container, err := redpanda.RunContainer(ctx,
		testcontainers.WithImage("redpandadata/redpanda:v23.3.5"),
		redpanda.WithAutoCreateTopics(),
	)
	require.NoError(err)
	s.container = container

	seedBroker, err := container.KafkaSeedBroker(ctx)
	require.NoError(err)

	var cfg Config
	cfg.SetDefaults()
	cfg.Brokers = []string{seedBroker}
	cfg.MetadataCacheTTL = time.Second

	s.svc, err = NewService(cfg, zap.NewNop())
	require.NoError(err)
	require.NoError(s.svc.TestConnection(ctx))

	s.manager, err = NewLogManager(s.svc, zap.NewNop())
	require.NoError(err)
}

func (s *LogManagerSuite) TearDownSuite() {
	if s.manager != nil {
		s.NoError(s.manager.Close())
	}
	if s.svc != nil {
		s.svc.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *LogManagerSuite) createTopic(name string, partitions int32) {
	ctx := context.Background()
	_, err := s.svc.Admin.CreateTopics(ctx, partitions, 1, nil, name)
	s.Require().NoError(err)
}

func (s *LogManagerSuite) TestOffsetsCommitAndTailer() {
	require := s.Require()
	ctx := context.Background()
	s.createTopic("orders", 2)

	exists, err := s.manager.Exists(ctx, "orders")
	require.NoError(err)
	s.True(exists)

	size, err := s.manager.Size(ctx, "orders")
	require.NoError(err)
	s.Equal(2, size)

	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 10; i++ {
		_, err := s.manager.Append(ctx, "orders", 0, logstore.Message{
			Key:       []byte("k"),
			Value:     []byte("v"),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(err)
	}

	ends, err := s.manager.EndOffsets(ctx, "orders")
	require.NoError(err)
	s.Equal([]int64{10, 0}, ends)

	p0 := position.LogPartition{Name: "orders", Partition: 0}
	require.NoError(s.manager.Commit(ctx, "billing", position.LogOffset{Partition: p0, Offset: 4}))

	committed, err := s.manager.CommittedOffsets(ctx, "orders", "billing")
	require.NoError(err)
	s.Equal([]int64{4, logstore.NoOffset}, committed)

	groups, err := s.manager.ListConsumerGroups(ctx, "orders")
	require.NoError(err)
	s.Contains(groups, "billing")

	offsets, err := s.manager.OffsetsForTimestamp(ctx, "orders", base.Add(150*time.Second))
	require.NoError(err)
	s.Equal([]int64{3, logstore.NoOffset}, offsets)

	offsets, err = s.manager.OffsetsForTimestamp(ctx, "orders", base.Add(time.Hour))
	require.NoError(err)
	s.Equal([]int64{logstore.NoOffset, logstore.NoOffset}, offsets)

	tl, err := s.manager.CreateTailer(ctx, "billing", p0)
	require.NoError(err)
	defer tl.Close()

	rec, err := tl.Read(ctx, 10*time.Second)
	require.NoError(err)
	require.NotNil(rec)
	s.Equal(int64(4), rec.Offset.Offset)
	consumer := tl.(*tailer).client
	require.NotNil(consumer)

	require.NoError(tl.Seek(position.LogOffset{Partition: p0, Offset: 9}))
	rec, err = tl.Read(ctx, 10*time.Second)
	require.NoError(err)
	require.NotNil(rec)
	s.Equal(int64(9), rec.Offset.Offset)

	rec, err = tl.Read(ctx, 500*time.Millisecond)
	require.NoError(err)
	s.Nil(rec)

	// seeking back reuses the consuming client
	require.NoError(tl.Seek(position.LogOffset{Partition: p0, Offset: 2}))
	rec, err = tl.Read(ctx, 10*time.Second)
	require.NoError(err)
	require.NotNil(rec)
	s.Equal(int64(2), rec.Offset.Offset)
	s.Same(consumer, tl.(*tailer).client)
}

func (s *LogManagerSuite) TestMissingLog() {
	ctx := context.Background()

	exists, err := s.manager.Exists(ctx, "does-not-exist")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.manager.EndOffsets(ctx, "does-not-exist")
	s.ErrorIs(err, logstore.ErrNotFound)
}

