package checkpoint

import (
	"context"
	"errors"
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// ErrNoCheckpoint is returned by Load if nothing has been saved under a name yet.
var ErrNoCheckpoint = errors.New("no checkpoint")

// State is the timer and counter state of a tracker. A tracker consumes no input, this is all it needs to resume.
type State struct {
	// Fingerprint identifies the tracked logs and output of the run that wrote the state
	Fingerprint string    `json:"fingerprint"`
	Count       int       `json:"count"`
	Remaining   int       `json:"remaining"`
	Ticks       int64     `json:"ticks"`
	LastFire    time.Time `json:"lastFire"`
}

// Store persists tracker states by tracker name.
type Store interface {
	Load(ctx context.Context, name string) (State, error)
	Save(ctx context.Context, name string, state State) error
	Close() error
}

// New returns a checkpoint store based on configuration.
func New(cfg Config) (Store, error) {
	if cfg.Backend == BackendEtcd {
		return NewEtcdStore(cfg)
	}
	return NewMemoryStore(), nil
}

// MemoryStore keeps states for the lifetime of the process only.
type MemoryStore struct {
	states cmap.ConcurrentMap
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: cmap.New()}
}

func (s *MemoryStore) Load(_ context.Context, name string) (State, error) {
	val, exists := s.states.Get(name)
	if !exists {
		return State{}, ErrNoCheckpoint
	}
	return val.(State), nil
}

func (s *MemoryStore) Save(_ context.Context, name string, state State) error {
	s.states.Set(name, state)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
