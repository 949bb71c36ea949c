package observability

import (
	"context"
	"sync"

	"github.com/aretw0/nodeflow/pkg/graph"
)

// Source is anything publishing graph change notifications, such as a
// graph.Store or a nodeflow.Engine.
type Source interface {
	Subscribe() (<-chan graph.Notification, func())
}

// Aggregator combines the change streams of several graphs into a single view.
type Aggregator struct {
	mu      sync.Mutex
	sources []Source
}

// NewAggregator creates a new aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddSource registers a graph to watch. Sources added after Watch is called
// are only seen by later calls.
func (a *Aggregator) AddSource(s Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, s)
}

// Watch subscribes to every source and forwards their notifications until ctx
// is done, then unsubscribes and closes the returned channel. Notifications of
// one graph keep their order; no order holds across graphs.
func (a *Aggregator) Watch(ctx context.Context) <-chan graph.Notification {
	a.mu.Lock()
	sources := append([]Source(nil), a.sources...)
	a.mu.Unlock()

	out := make(chan graph.Notification)
	var wg sync.WaitGroup
	for _, src := range sources {
		ch, cancel := src.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- n:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
