package graph

import (
	"log/slog"
	"time"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
)

// DefaultGraphID names the graph when none is configured.
const DefaultGraphID = "default"

// Option defines a functional option for configuring the Store.
type Option func(*Store)

// WithSnapshotStore persists every effective transition to ss.
func WithSnapshotStore(ss ports.SnapshotStore) Option {
	return func(s *Store) {
		s.snapshots = ss
	}
}

// WithGraphID sets the key under which the graph is persisted.
func WithGraphID(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.graphID = id
		}
	}
}

// WithLogger sets a custom structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithLocker serialises dispatches across replicas sharing the same snapshot store.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Store) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithInitialState seeds the store. Open replaces it with the persisted snapshot when one exists.
func WithInitialState(state *domain.State) Option {
	return func(s *Store) {
		if state != nil {
			s.state = state.Clone()
		}
	}
}

// WithSubscriberBuffer sets the channel capacity of each subscriber.
func WithSubscriberBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.subBuffer = n
		}
	}
}
