package kafka

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jellydator/ttlcache/v2"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

var _ logstore.Manager = (*LogManager)(nil)

// LogManager implements logstore.Manager on top of Kafka: logs are topics, consumer groups are Kafka consumer groups.
type LogManager struct {
	svc    *Service
	logger *zap.Logger

	// requestGroup is used to deduplicate multiple concurrent metadata requests to kafka
	requestGroup *singleflight.Group
	cache        *ttlcache.Cache

	producerOnce sync.Once
	producer     *kgo.Client
	producerErr  error
}

func NewLogManager(svc *Service, logger *zap.Logger) (*LogManager, error) {
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)
	if err := cache.SetTTL(svc.cfg.MetadataCacheTTL); err != nil {
		return nil, fmt.Errorf("failed to set metadata cache ttl: %w", err)
	}

	return &LogManager{
		svc:          svc,
		logger:       logger.Named("kafka_log_manager"),
		requestGroup: &singleflight.Group{},
		cache:        cache,
	}, nil
}

func (m *LogManager) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
	defer cancel()

	details, err := m.svc.Admin.ListTopics(ctx, name)
	if err != nil {
		return false, errors.Wrap(err, "failed to get metadata")
	}
	detail, exists := details[name]
	if !exists || errors.Is(detail.Err, kerr.UnknownTopicOrPartition) {
		return false, nil
	}
	if detail.Err != nil {
		return false, errors.Wrapf(detail.Err, "failed to get metadata of topic '%v'", name)
	}
	return true, nil
}

func (m *LogManager) ListAll(ctx context.Context) ([]string, error) {
	details, err := m.topicDetailsCached(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(details))
	for name, detail := range details {
		if detail.Err != nil {
			m.logger.Warn("skipping topic whose metadata could not be fetched", zap.String("topic", name), zap.Error(detail.Err))
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *LogManager) Size(ctx context.Context, name string) (int, error) {
	details, err := m.topicDetailsCached(ctx)
	if err != nil {
		return 0, err
	}
	detail, exists := details[name]
	if !exists || detail.Err != nil {
		// the cache may not know a freshly created topic yet
		if ok, err := m.Exists(ctx, name); err != nil || !ok {
			return 0, fmt.Errorf("%w: log '%v'", logstore.ErrNotFound, name)
		}
		_ = m.cache.Remove("topics")
		if details, err = m.topicDetailsCached(ctx); err != nil {
			return 0, err
		}
		if detail, exists = details[name]; !exists || detail.Err != nil {
			return 0, fmt.Errorf("%w: log '%v'", logstore.ErrNotFound, name)
		}
	}
	return len(detail.Partitions), nil
}

func (m *LogManager) Append(ctx context.Context, name string, partition int, msg logstore.Message) (position.LogOffset, error) {
	producer, err := m.getProducer()
	if err != nil {
		return position.LogOffset{}, err
	}

	rec := &kgo.Record{
		Topic:     name,
		Partition: int32(partition),
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}

	produced, err := producer.ProduceSync(ctx, rec).First()
	if err != nil {
		if errors.Is(err, kerr.UnknownTopicOrPartition) {
			return position.LogOffset{}, fmt.Errorf("%w: log '%v' partition %d", logstore.ErrNotFound, name, partition)
		}
		return position.LogOffset{}, fmt.Errorf("failed to produce record to '%v': %w", name, err)
	}
	return position.LogOffset{
		Partition: position.LogPartition{Name: name, Partition: int(produced.Partition)},
		Offset:    produced.Offset,
	}, nil
}

func (m *LogManager) Close() error {
	if m.producer != nil {
		m.producer.Close()
	}
	return m.cache.Close()
}

// getProducer lazily creates a producer that writes to explicitly chosen partitions.
func (m *LogManager) getProducer() (*kgo.Client, error) {
	m.producerOnce.Do(func() {
		m.producer, m.producerErr = m.svc.NewClient(
			kgo.RecordPartitioner(kgo.ManualPartitioner()),
			kgo.ProducerLinger(0),
		)
	})
	return m.producer, m.producerErr
}

func (m *LogManager) topicDetailsCached(ctx context.Context) (kadm.TopicDetails, error) {
	res, err, _ := m.requestGroup.Do("topics", func() (interface{}, error) {
		if cached, err := m.cache.Get("topics"); err == nil {
			return cached, nil
		}

		ctx, cancel := context.WithTimeout(ctx, m.svc.cfg.RequestTimeout)
		defer cancel()
		details, err := m.svc.Admin.ListTopics(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get metadata")
		}
		_ = m.cache.Set("topics", details)
		return details, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(kadm.TopicDetails), nil
}
