package nodeflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/adapters/request"
	"github.com/aretw0/nodeflow/pkg/definition"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/graph"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/runner"
	"github.com/aretw0/nodeflow/pkg/transform"
)

// Engine is the high-level entry point for the library. It owns one graph and
// runs its nodes with the HTTP request and transform executors.
//
// The embedded Store answers every graph query and accepts dispatches.
type Engine struct {
	*graph.Store

	runner *runner.Runner
	logger *slog.Logger
}

type settings struct {
	graphOpts  []graph.Option
	runnerOpts []runner.Option
	client     *http.Client
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	timeout    time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*settings)

// WithLogger sets the structured logger shared by the store, the runner and the executors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on both the store and the runner.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithGraphID selects the persisted graph to open.
func WithGraphID(id string) Option {
	return func(s *settings) {
		s.graphOpts = append(s.graphOpts, graph.WithGraphID(id))
	}
}

// WithSnapshotStore persists every change of the graph.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(s *settings) {
		s.graphOpts = append(s.graphOpts, graph.WithSnapshotStore(store))
	}
}

// WithLocker serialises dispatches across processes sharing the snapshot store.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *settings) {
		s.graphOpts = append(s.graphOpts, graph.WithLocker(l, ttl))
	}
}

// WithHTTPClient replaces the client used by request nodes.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.client = c
	}
}

// WithTimeout bounds every node run.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithInterceptor installs a policy consulted before each node run.
func WithInterceptor(i runner.Interceptor) Option {
	return func(s *settings) {
		s.runnerOpts = append(s.runnerOpts, runner.WithInterceptor(i))
	}
}

// WithExecutor overrides the executor of a node kind.
func WithExecutor(kind domain.NodeKind, exec ports.NodeExecutor) Option {
	return func(s *settings) {
		s.runnerOpts = append(s.runnerOpts, runner.WithExecutor(kind, exec))
	}
}

// New opens the graph, restoring its snapshot when a store is configured.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	graphOpts := append([]graph.Option{
		graph.WithLogger(s.logger),
		graph.WithLifecycleHooks(s.hooks),
	}, s.graphOpts...)
	store, err := graph.Open(ctx, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}

	reqOpts := []request.Option{request.WithLogger(s.logger)}
	if s.client != nil {
		reqOpts = append(reqOpts, request.WithClient(s.client))
	}
	runnerOpts := append([]runner.Option{
		runner.WithLogger(s.logger),
		runner.WithLifecycleHooks(s.hooks),
		runner.WithTimeout(s.timeout),
		runner.WithExecutor(domain.NodeKindSource, request.New(reqOpts...)),
		runner.WithExecutor(domain.NodeKindTransform, transform.New(transform.WithLogger(s.logger))),
	}, s.runnerOpts...)

	return &Engine{
		Store:  store,
		runner: runner.New(store, runnerOpts...),
		logger: s.logger,
	}, nil
}

// Runner returns the runner executing the engine's nodes.
func (e *Engine) Runner() *runner.Runner {
	return e.runner
}

// Run validates and executes one node.
func (e *Engine) Run(ctx context.Context, nodeID string) (domain.TestResult, error) {
	return e.runner.Run(ctx, nodeID)
}

// RunPipeline executes a node after all of its ancestors.
func (e *Engine) RunPipeline(ctx context.Context, nodeID string) ([]domain.TestResult, error) {
	return e.runner.RunPipeline(ctx, nodeID)
}

// RunAll executes the whole graph in dependency order.
func (e *Engine) RunAll(ctx context.Context) ([]domain.TestResult, error) {
	return e.runner.RunAll(ctx)
}

// Apply dispatches the actions of a definition and returns how many changed the graph.
func (e *Engine) Apply(ctx context.Context, def *definition.Definition) (int, error) {
	actions, err := def.Actions()
	if err != nil {
		return 0, err
	}
	n := e.DispatchAll(ctx, actions)
	e.logger.Info("definition applied", "name", def.Name, "actions", len(actions), "changed", n)
	return n, nil
}

// Load reads a workflow file and applies it.
func (e *Engine) Load(ctx context.Context, path string) (int, error) {
	def, err := definition.Load(path)
	if err != nil {
		return 0, err
	}
	return e.Apply(ctx, def)
}

// Export returns the user-authored part of the graph as a definition.
func (e *Engine) Export(name string) *definition.Definition {
	return definition.FromState(name, e.State())
}
