package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/pkg/kversion"
	"go.uber.org/zap"
)

// Service owns the shared Kafka client and creates additional clients (producers, partition consumers) from the
// same base configuration.
type Service struct {
	cfg    Config
	logger *zap.Logger

	baseOpts []kgo.Opt
	Client   *kgo.Client
	Admin    *kadm.Client
}

func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	kgoOpts, err := NewKgoConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create a valid kafka Client config: %w", err)
	}

	kafkaClient, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka Client: %w", err)
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		baseOpts: kgoOpts,
		Client:   kafkaClient,
		Admin:    kadm.NewClient(kafkaClient),
	}, nil
}

// NewClient creates a new client with the service's base options plus the given ones. The caller must close it.
func (s *Service) NewClient(opts ...kgo.Opt) (*kgo.Client, error) {
	allOpts := make([]kgo.Opt, 0, len(s.baseOpts)+len(opts))
	allOpts = append(allOpts, s.baseOpts...)
	allOpts = append(allOpts, opts...)
	client, err := kgo.NewClient(allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// TestConnection tries to fetch Broker metadata and prints some information if connection succeeds. An error will be
// returned if connecting fails.
func (s *Service) TestConnection(ctx context.Context) error {
	s.logger.Info("connecting to Kafka seed brokers, trying to fetch cluster metadata",
		zap.String("seed_brokers", strings.Join(s.cfg.Brokers, ",")))

	req := kmsg.NewMetadataRequest()
	res, err := req.RequestWith(ctx, s.Client)
	if err != nil {
		return fmt.Errorf("failed to request metadata: %w", err)
	}

	// Request versions in order to guess Kafka Cluster version
	versionsReq := kmsg.NewApiVersionsRequest()
	versionsRes, err := versionsReq.RequestWith(ctx, s.Client)
	if err != nil {
		return fmt.Errorf("failed to request api versions: %w", err)
	}
	err = kerr.ErrorForCode(versionsRes.ErrorCode)
	if err != nil {
		return fmt.Errorf("failed to request api versions. Inner kafka error: %w", err)
	}
	versions := kversion.FromApiVersionsResponse(versionsRes)

	s.logger.Debug("successfully connected to kafka cluster",
		zap.Int("advertised_broker_count", len(res.Brokers)),
		zap.Int("topic_count", len(res.Topics)),
		zap.Int32("controller_id", res.ControllerID),
		zap.String("kafka_version", versions.VersionGuess()))

	return nil
}

func (s *Service) Close() {
	s.Client.Close()
}
