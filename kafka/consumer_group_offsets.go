package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

// ListConsumerGroups returns all groups that have committed at least one offset on the given log.
func (m *LogManager) ListConsumerGroups(ctx context.Context, name string) ([]string, error) {
	if _, err := m.Size(ctx, name); err != nil {
		return nil, err
	}

	groups, err := m.listGroupsCached(ctx)
	if err != nil {
		return nil, err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(10)

	mutex := sync.Mutex{}
	res := make([]string, 0)
	for _, group := range groups {
		group := group
		eg.Go(func() error {
			offsets, err := m.fetchGroupOffsets(egCtx, group, nil)
			if err != nil {
				m.logger.Warn("failed to fetch consumer group offsets, inner kafka error",
					zap.String("consumer_group", group),
					zap.Error(err))
				return nil
			}
			for _, topic := range offsets.Topics {
				if topic.Topic != name {
					continue
				}
				for _, partition := range topic.Partitions {
					if partition.Offset >= 0 {
						mutex.Lock()
						res = append(res, group)
						mutex.Unlock()
						return nil
					}
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(res)
	return res, nil
}

// CommittedOffsets returns the committed offsets of a group, logstore.NoOffset for partitions without commit.
func (m *LogManager) CommittedOffsets(ctx context.Context, name, group string) ([]int64, error) {
	size, err := m.Size(ctx, name)
	if err != nil {
		return nil, err
	}

	topic := kmsg.NewOffsetFetchRequestTopic()
	topic.Topic = name
	for i := 0; i < size; i++ {
		topic.Partitions = append(topic.Partitions, int32(i))
	}
	res, err := m.fetchGroupOffsets(ctx, group, []kmsg.OffsetFetchRequestTopic{topic})
	if err != nil {
		return nil, err
	}

	offsets := make([]int64, size)
	for i := range offsets {
		offsets[i] = logstore.NoOffset
	}
	for _, t := range res.Topics {
		if t.Topic != name {
			continue
		}
		for _, p := range t.Partitions {
			if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
				return nil, fmt.Errorf("failed to fetch committed offset of partition %d: %w", p.Partition, err)
			}
			if int(p.Partition) < size && p.Offset >= 0 {
				offsets[p.Partition] = p.Offset
			}
		}
	}
	return offsets, nil
}

// Commit commits a single partition offset with an admin style commit (no member, generation -1). Kafka rejects it
// while the group has active members.
func (m *LogManager) Commit(ctx context.Context, group string, offset position.LogOffset) error {
	if group == "" || offset.Offset < 0 {
		return fmt.Errorf("%w: cannot commit offset %v for group '%v'", logstore.ErrInvalidArgument, offset, group)
	}

	ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
	defer cancel()

	partition := kmsg.NewOffsetCommitRequestTopicPartition()
	partition.Partition = int32(offset.Partition.Partition)
	partition.Offset = offset.Offset
	topic := kmsg.NewOffsetCommitRequestTopic()
	topic.Topic = offset.Partition.Name
	topic.Partitions = []kmsg.OffsetCommitRequestTopicPartition{partition}

	req := kmsg.NewOffsetCommitRequest()
	req.Group = group
	req.Topics = []kmsg.OffsetCommitRequestTopic{topic}
	res, err := req.RequestWith(ctx, m.svc.Client)
	if err != nil {
		return fmt.Errorf("%w: failed to request offset commit: %v", logstore.ErrCommitFailed, err)
	}
	for _, t := range res.Topics {
		for _, p := range t.Partitions {
			if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
				return fmt.Errorf("%w: partition %d: %v", logstore.ErrCommitFailed, p.Partition, err)
			}
		}
	}
	return nil
}

// fetchGroupOffsets returns the committed group offsets for a single group, all topics if topics is nil.
func (m *LogManager) fetchGroupOffsets(ctx context.Context, group string, topics []kmsg.OffsetFetchRequestTopic) (*kmsg.OffsetFetchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
	defer cancel()

	req := kmsg.NewOffsetFetchRequest()
	req.Group = group
	req.Topics = topics
	res, err := req.RequestWith(ctx, m.svc.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to request group offsets for group '%v': %w", group, err)
	}
	if err := kerr.ErrorForCode(res.ErrorCode); err != nil {
		return nil, fmt.Errorf("failed to fetch group offsets for group '%v', inner kafka error: %w", group, err)
	}
	return res, nil
}

func (m *LogManager) listGroupsCached(ctx context.Context) ([]string, error) {
	res, err, _ := m.requestGroup.Do("groups", func() (interface{}, error) {
		if cached, err := m.cache.Get("groups"); err == nil {
			return cached, nil
		}

		ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
		defer cancel()
		listed, err := m.svc.Admin.ListGroups(ctx)
		if err != nil {
			var se *kadm.ShardErrors
			if !errors.As(err, &se) || se.AllFailed {
				return nil, fmt.Errorf("failed to list consumer groups: %w", err)
			}
			m.logger.Warn("failed to list consumer groups from some brokers", zap.Int("failed_shards", len(se.Errs)))
		}

		groups := make([]string, 0, len(listed))
		for group := range listed {
			groups = append(groups, group)
		}
		_ = m.cache.Set("groups", groups)
		return groups, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}
