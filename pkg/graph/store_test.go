package graph_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/nodeflow/pkg/adapters/memory"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/graph"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*memory.Store
}

func (f failingStore) Save(context.Context, string, *domain.State) error {
	return errors.New("disk full")
}

func TestStore_DispatchAndQueries(t *testing.T) {
	ctx := context.Background()
	s := graph.New()

	assert.True(t, s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"}))
	assert.True(t, s.Dispatch(ctx, domain.InitializeNode{NodeID: "B", Kind: domain.NodeKindTransform}))
	assert.True(t, s.Dispatch(ctx, domain.UpsertNodeConfiguration{NodeID: "A", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"items"}}}))
	assert.True(t, s.Dispatch(ctx, domain.AddConnection{Connection: domain.Connection{SourceNodeID: "A", TargetNodeID: "B"}}))

	v, err := value.Parse([]byte(`{"items":[{"id":1},{"id":2}],"meta":"x"}`))
	require.NoError(t, err)
	assert.True(t, s.Dispatch(ctx, domain.SetTestResult{NodeID: "A", Result: domain.TestResult{Success: true, Value: v}}))

	inputs := s.ResolvedInputs("B")
	require.Contains(t, inputs, "A")
	assert.Equal(t, `{"items":[{"id":1},{"id":2}]}`, inputs["A"].String())
	assert.Equal(t, map[string][]string{"A": {"items"}}, s.AvailableOutputs("B"))
	require.Len(t, s.UpstreamNodes("B"), 1)

	cfg, ok := s.NodeConfiguration("A")
	require.True(t, ok)
	assert.Equal(t, "GET", cfg.Request.Method)

	_, ok = s.NodeConfiguration("nope")
	assert.False(t, ok)
	assert.Empty(t, s.ValidationErrors("A"))
	assert.Len(t, s.Nodes(), 2)
	assert.Len(t, s.Connections(), 1)
	assert.Equal(t, uint64(5), s.State().Revision)

	assert.False(t, s.Dispatch(ctx, domain.RemoveNode{NodeID: "ghost"}))
	assert.False(t, s.Dispatch(ctx, nil))
}

func TestStore_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	s := graph.New()
	s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	s.Dispatch(ctx, domain.AddValidationError{NodeID: "A", Error: domain.ValidationError{Field: "method", Severity: domain.SeverityWarning}})
	assert.False(t, s.HasValidationErrors("A"), "warnings do not count")

	s.Dispatch(ctx, domain.AddValidationError{NodeID: "A", Error: domain.ValidationError{Field: "url", Message: "URL is required"}})
	assert.True(t, s.HasValidationErrors("A"))
	assert.Len(t, s.ValidationErrors("A"), 2)
}

func TestStore_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewStore()

	s, err := graph.Open(ctx, graph.WithSnapshotStore(snapshots), graph.WithGraphID("g1"))
	require.NoError(t, err)
	s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	s.Dispatch(ctx, domain.SetTestResult{NodeID: "A", Result: domain.TestResult{RunID: 41, Success: true}})

	restored, err := graph.Open(ctx, graph.WithSnapshotStore(snapshots), graph.WithGraphID("g1"))
	require.NoError(t, err)
	assert.True(t, restored.State().HasNode("A"))
	assert.Equal(t, s.State().Revision, restored.State().Revision)
	assert.Equal(t, uint64(42), restored.NextRunID(), "run IDs continue after the highest stored one")

	other, err := graph.Open(ctx, graph.WithSnapshotStore(snapshots), graph.WithGraphID("g2"))
	require.NoError(t, err)
	assert.True(t, other.State().IsEmpty())
}

func TestStore_PersistFailureIsReported(t *testing.T) {
	ctx := context.Background()
	var (
		mu     sync.Mutex
		failed []string
	)
	s := graph.New(
		graph.WithSnapshotStore(failingStore{memory.NewStore()}),
		graph.WithLifecycleHooks(domain.LifecycleHooks{
			OnPersistError: func(_ context.Context, op string, _ error) {
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, op)
			},
		}),
	)

	assert.True(t, s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"}), "the change is applied even if it cannot be saved")
	assert.True(t, s.State().HasNode("A"))
	assert.Equal(t, []string{"save"}, failed)
}

func TestStore_Hooks(t *testing.T) {
	ctx := context.Background()
	var events []domain.DispatchEvent
	s := graph.New(graph.WithLifecycleHooks(domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) { events = append(events, *e) },
	}))

	s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	s.Dispatch(ctx, domain.RemoveNode{NodeID: "ghost"})

	require.Len(t, events, 2)
	assert.True(t, events[0].Changed)
	assert.Equal(t, domain.ActionInitializeNode, events[0].Action)
	assert.Equal(t, "A", events[0].NodeID)
	assert.False(t, events[1].Changed)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := graph.New()
	ch, cancel := s.Subscribe()

	s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	s.Dispatch(ctx, domain.RemoveNode{NodeID: "ghost"})

	select {
	case n := <-ch:
		assert.Equal(t, domain.ActionInitializeNode, n.Action)
		assert.Equal(t, uint64(1), n.Revision)
		assert.Equal(t, []string{"A"}, n.Diff.ChangedNodes)
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	select {
	case n := <-ch:
		t.Fatalf("no-op dispatch must not notify, got %+v", n)
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_SlowSubscriberDrops(t *testing.T) {
	ctx := context.Background()
	s := graph.New(graph.WithSubscriberBuffer(1))
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	s.Dispatch(ctx, domain.InitializeNode{NodeID: "B"})

	assert.Len(t, ch, 1)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	s := graph.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			s.Dispatch(ctx, domain.InitializeNode{NodeID: id + "-" + time.Duration(i).String()})
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Nodes(), 50)
	assert.Equal(t, uint64(50), s.State().Revision)
}

func TestStore_NextRunIDMonotonic(t *testing.T) {
	s := graph.New()
	a := s.NextRunID()
	b := s.NextRunID()
	assert.Less(t, a, b)
}

func TestStore_DispatchedResultAdvancesRunID(t *testing.T) {
	ctx := context.Background()
	s := graph.New()
	require.True(t, s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"}))
	require.True(t, s.Dispatch(ctx, domain.SetTestResult{NodeID: "A", Result: domain.TestResult{
		RunID: 1000, Success: true, Value: value.String("old"),
	}}))

	runID := s.NextRunID()
	assert.Greater(t, runID, uint64(1000))

	assert.True(t, s.Dispatch(ctx, domain.SetTestResult{NodeID: "A", Result: domain.TestResult{
		RunID: runID, Success: true, Value: value.String("new"),
	}}))
	res, ok := s.TestResult("A")
	require.True(t, ok)
	got, _ := res.Value.AsString()
	assert.Equal(t, "new", got)
}

func TestStore_HookMayCallBack(t *testing.T) {
	ctx := context.Background()
	var s *graph.Store
	var seen []int
	s = graph.New(graph.WithLifecycleHooks(domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			seen = append(seen, len(s.Nodes()))
			if e.NodeID == "A" && e.Changed {
				s.Dispatch(ctx, domain.InitializeNode{NodeID: "B"})
			}
		},
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch from a hook deadlocked")
	}
	assert.True(t, s.State().HasNode("B"))
	assert.Equal(t, []int{1, 2}, seen)
}

func TestStore_LockerAdoptsNewerRevision(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewStore()
	locker := memory.NewLocker()

	r1, err := graph.Open(ctx, graph.WithSnapshotStore(snapshots), graph.WithLocker(locker, time.Second))
	require.NoError(t, err)
	r2, err := graph.Open(ctx, graph.WithSnapshotStore(snapshots), graph.WithLocker(locker, time.Second))
	require.NoError(t, err)

	require.True(t, r1.Dispatch(ctx, domain.InitializeNode{NodeID: "A"}))
	require.True(t, r2.Dispatch(ctx, domain.InitializeNode{NodeID: "B"}))

	assert.True(t, r2.State().HasNode("A"), "second replica must see the first one's write")
	assert.Equal(t, uint64(2), r2.State().Revision)

	r1.Refresh(ctx)
	assert.True(t, r1.State().HasNode("B"))
}

func TestStore_LockFailureDropsAction(t *testing.T) {
	locker := memory.NewLocker()
	unlock, err := locker.Lock(context.Background(), "graph:"+graph.DefaultGraphID, time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	s := graph.New(graph.WithLocker(locker, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.False(t, s.Dispatch(ctx, domain.InitializeNode{NodeID: "A"}))
	assert.False(t, s.State().HasNode("A"))
}
