package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/resolver"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Notification is published to subscribers after every effective dispatch.
type Notification struct {
	GraphID  string            `json:"graphId"`
	Action   domain.ActionType `json:"action"`
	Revision uint64            `json:"revision"`
	Diff     *domain.StateDiff `json:"diff"`
}

// Store owns one graph and serialises every change to it.
// Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state *domain.State

	graphID   string
	snapshots ports.SnapshotStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	runSeq atomic.Uint64

	subMu     sync.RWMutex
	subs      map[int]chan Notification
	nextSub   int
	subBuffer int
}

var _ ports.Graph = (*Store)(nil)

// New creates a Store without touching persistence.
func New(opts ...Option) *Store {
	s := &Store{
		state:     domain.NewState(),
		graphID:   DefaultGraphID,
		lockTTL:   10 * time.Second,
		logger:    logging.NewNop(),
		subs:      make(map[int]chan Notification),
		subBuffer: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("graph", s.graphID)
	s.runSeq.Store(s.state.MaxRunID())
	return s
}

// Open creates a Store and restores the persisted snapshot of its graph, if any.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := New(opts...)
	if s.snapshots == nil {
		return s, nil
	}

	loaded, err := s.snapshots.Load(ctx, s.graphID)
	if errors.Is(err, domain.ErrGraphNotFound) {
		s.logger.Debug("no persisted snapshot, starting empty")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", s.graphID, err)
	}

	s.adopt(loaded.Normalize())
	s.logger.Info("graph restored", "nodes", len(loaded.Configurations), "revision", loaded.Revision)
	return s, nil
}

// GraphID returns the persistence key of the graph.
func (s *Store) GraphID() string {
	return s.graphID
}

// Dispatch applies action and reports whether the state changed.
// Persistence failures are logged and reported through the hooks, never returned.
// OnDispatch runs after the store is unlocked, so it may query or dispatch.
func (s *Store) Dispatch(ctx context.Context, action domain.Action) bool {
	if action == nil {
		return false
	}

	event := s.apply(ctx, action)
	if event == nil {
		return false
	}
	if s.hooks.OnDispatch != nil {
		s.hooks.OnDispatch(ctx, event)
	}
	return event.Changed
}

// apply reduces action under the lock. It returns nil when the graph lock
// could not be taken.
func (s *Store) apply(ctx context.Context, action domain.Action) *domain.DispatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.lockKey(), s.lockTTL)
		if err != nil {
			s.logger.Error("failed to lock graph, action dropped", "action", action.Type(), "error", err)
			s.persistFailed(ctx, "lock", err)
			return nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to unlock graph", "error", err)
			}
		}()
		s.refreshLocked(ctx)
	}

	prev := s.state
	next, changed := domain.Reduce(prev, action)

	if changed {
		s.state = next
		// Results dispatched from outside the runner may carry any run ID.
		s.raiseRunSeq(next.MaxRunID())
		s.persist(ctx, next)
	}

	s.logger.Debug("dispatch", "action", action.Type(), "node", domain.TargetNode(action), "changed", changed, "revision", next.Revision)

	// Broadcast under the lock so subscribers see revisions in order.
	if changed {
		s.broadcast(Notification{
			GraphID:  s.graphID,
			Action:   action.Type(),
			Revision: next.Revision,
			Diff:     domain.Diff(prev, next),
		})
	}

	return &domain.DispatchEvent{
		Timestamp: time.Now(),
		GraphID:   s.graphID,
		Action:    action.Type(),
		NodeID:    domain.TargetNode(action),
		Changed:   changed,
		Revision:  next.Revision,
	}
}

// DispatchAll applies actions in order and returns how many changed the state.
func (s *Store) DispatchAll(ctx context.Context, actions []domain.Action) int {
	n := 0
	for _, a := range actions {
		if s.Dispatch(ctx, a) {
			n++
		}
	}
	return n
}

// Refresh adopts the persisted snapshot when it is newer than the one in memory.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(ctx)
}

func (s *Store) refreshLocked(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	persisted, err := s.snapshots.Load(ctx, s.graphID)
	if err != nil {
		if !errors.Is(err, domain.ErrGraphNotFound) {
			s.logger.Warn("failed to refresh graph", "error", err)
		}
		return
	}
	if persisted.Revision > s.state.Revision {
		prev := s.state
		s.adopt(persisted.Normalize())
		s.logger.Debug("adopted newer snapshot", "from", prev.Revision, "to", persisted.Revision)
	}
}

func (s *Store) adopt(state *domain.State) {
	s.state = state
	s.raiseRunSeq(state.MaxRunID())
}

func (s *Store) raiseRunSeq(want uint64) {
	for {
		cur := s.runSeq.Load()
		if cur >= want || s.runSeq.CompareAndSwap(cur, want) {
			return
		}
	}
}

func (s *Store) persist(ctx context.Context, state *domain.State) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, s.graphID, state); err != nil {
		s.logger.Error("failed to persist graph", "revision", state.Revision, "error", err)
		s.persistFailed(ctx, "save", err)
	}
}

func (s *Store) persistFailed(ctx context.Context, op string, err error) {
	if s.hooks.OnPersistError != nil {
		s.hooks.OnPersistError(ctx, op, err)
	}
}

func (s *Store) lockKey() string {
	return "graph:" + s.graphID
}

// NextRunID returns a run ID greater than every stored or previously issued one.
func (s *Store) NextRunID() uint64 {
	return s.runSeq.Add(1)
}

// State returns the current snapshot. Callers must treat it as read-only.
func (s *Store) State() *domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NodeConfiguration returns a copy of the node's configuration.
func (s *Store) NodeConfiguration(nodeID string) (domain.NodeConfiguration, bool) {
	cfg, ok := s.State().Configurations[nodeID]
	if !ok {
		return domain.NodeConfiguration{}, false
	}
	return cfg.Clone(), true
}

// TestResult returns the node's last result.
func (s *Store) TestResult(nodeID string) (domain.TestResult, bool) {
	r, ok := s.State().TestResults[nodeID]
	return r, ok
}

// ValidationErrors returns a copy of the node's validation errors.
func (s *Store) ValidationErrors(nodeID string) []domain.ValidationError {
	list := slices.Clone(s.State().ValidationErrors[nodeID])
	if list == nil {
		return []domain.ValidationError{}
	}
	return list
}

// HasValidationErrors reports whether any issue of error severity is recorded for the node.
func (s *Store) HasValidationErrors(nodeID string) bool {
	return slices.ContainsFunc(s.State().ValidationErrors[nodeID], func(e domain.ValidationError) bool {
		return e.Severity == domain.SeverityError
	})
}

// Nodes returns every node configuration sorted by ID.
func (s *Store) Nodes() []domain.NodeConfiguration {
	state := s.State()
	out := make([]domain.NodeConfiguration, 0, len(state.Configurations))
	for _, id := range state.NodeIDs() {
		out = append(out, state.Configurations[id].Clone())
	}
	return out
}

// Connections returns the edges in insertion order.
func (s *Store) Connections() []domain.Connection {
	out := slices.Clone(s.State().Connections)
	if out == nil {
		return []domain.Connection{}
	}
	return out
}

// UpstreamNodes lists the distinct sources feeding nodeID.
func (s *Store) UpstreamNodes(nodeID string) []domain.NodeConfiguration {
	return resolver.UpstreamNodes(s.State(), nodeID)
}

// AvailableOutputs lists the selections each upstream node exposes to nodeID.
func (s *Store) AvailableOutputs(nodeID string) map[string][]string {
	return resolver.AvailableOutputs(s.State(), nodeID)
}

// ResolvedInputs projects the results of nodeID's upstream nodes.
func (s *Store) ResolvedInputs(nodeID string) map[string]value.Value {
	return resolver.ResolvedInputs(s.State(), nodeID)
}
