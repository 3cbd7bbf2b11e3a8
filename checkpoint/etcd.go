package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore keeps one JSON encoded state per tracker under <prefix>/<name>.
type EtcdStore struct {
	client         *clientv3.Client
	prefix         string
	requestTimeout time.Duration
}

func NewEtcdStore(cfg Config) (*EtcdStore, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &EtcdStore{
		client:         client,
		prefix:         strings.TrimSuffix(cfg.Prefix, "/"),
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

func (s *EtcdStore) key(name string) string {
	return s.prefix + "/" + name
}

func (s *EtcdStore) Load(ctx context.Context, name string) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, s.key(name))
	if err != nil {
		return State{}, fmt.Errorf("failed to get checkpoint '%v': %w", name, err)
	}
	if len(resp.Kvs) == 0 {
		return State{}, ErrNoCheckpoint
	}

	var state State
	if err := json.Unmarshal(resp.Kvs[0].Value, &state); err != nil {
		return State{}, fmt.Errorf("failed to decode checkpoint '%v': %w", name, err)
	}
	return state, nil
}

func (s *EtcdStore) Save(ctx context.Context, name string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	if _, err := s.client.Put(ctx, s.key(name), string(data)); err != nil {
		return fmt.Errorf("failed to put checkpoint '%v': %w", name, err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}
