package domain

import (
	"context"
	"time"
)

// DispatchEvent describes one action handled by the graph store.
type DispatchEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	GraphID   string     `json:"graphId"`
	Action    ActionType `json:"action"`
	NodeID    string     `json:"nodeId,omitempty"`
	Changed   bool       `json:"changed"`
	Revision  uint64     `json:"revision"`
}

// RunEvent describes the start or end of a node run.
type RunEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	NodeID    string        `json:"nodeId"`
	Kind      NodeKind      `json:"kind"`
	RunID     uint64        `json:"runId"`
	Success   bool          `json:"success,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for store and runner observability.
// Any hook may be nil. OnPersistError runs while the graph is locked and must
// not call back into the store.
type LifecycleHooks struct {
	OnDispatch     func(context.Context, *DispatchEvent)
	OnPersistError func(context.Context, string, error)
	OnRunStart     func(context.Context, *RunEvent)
	OnRunFinish    func(context.Context, *RunEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDispatch:     chain(h.OnDispatch, other.OnDispatch),
		OnPersistError: chain2(h.OnPersistError, other.OnPersistError),
		OnRunStart:     chain(h.OnRunStart, other.OnRunStart),
		OnRunFinish:    chain(h.OnRunFinish, other.OnRunFinish),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chain2[A, B any](a, b func(context.Context, A, B)) func(context.Context, A, B) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, x A, y B) {
		a(ctx, x, y)
		b(ctx, x, y)
	}
}
