package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/internal/validator"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/resolver"
)

// ErrorTypeExecutor marks results of runs whose executor could not start.
const ErrorTypeExecutor = "executor_error"

// ErrRunFailed is returned by pipelines when a node finishes unsuccessfully.
var ErrRunFailed = errors.New("node run failed")

// Runner executes graph nodes and records their results in the graph.
type Runner struct {
	graph       ports.Graph
	executors   map[domain.NodeKind]ports.NodeExecutor
	logger      *slog.Logger
	timeout     time.Duration
	hooks       domain.LifecycleHooks
	interceptor Interceptor
	validate    func(domain.NodeConfiguration) []domain.ValidationError
}

// New creates a Runner over g. Executors are registered per node kind with WithExecutor.
func New(g ports.Graph, opts ...Option) *Runner {
	r := &Runner{
		graph:       g,
		executors:   make(map[domain.NodeKind]ports.NodeExecutor),
		logger:      logging.NewNop(),
		interceptor: AutoApproveMiddleware(),
		validate:    validator.Validate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates and executes one node against the current upstream results.
//
// Validation issues replace the node's previous ones. If any of them is an
// error the node is not run and ErrValidationFailed is returned. Executor and
// remote failures are not Go errors: they are recorded as unsuccessful results.
func (r *Runner) Run(ctx context.Context, nodeID string) (domain.TestResult, error) {
	cfg, ok := r.graph.NodeConfiguration(nodeID)
	if !ok {
		return domain.TestResult{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	r.graph.Dispatch(ctx, domain.ClearValidationErrors{NodeID: nodeID})
	issues := r.validate(cfg)
	for _, issue := range issues {
		r.graph.Dispatch(ctx, domain.AddValidationError{NodeID: nodeID, Error: issue})
	}
	if validator.HasErrors(issues) {
		r.logger.Debug("validation failed", "node", nodeID, "issues", len(issues))
		return domain.TestResult{}, fmt.Errorf("%w: %s", domain.ErrValidationFailed, nodeID)
	}

	exec, ok := r.executors[cfg.Kind]
	if !ok {
		return domain.TestResult{}, fmt.Errorf("%w: %s", domain.ErrNoExecutor, cfg.Kind)
	}

	runID := r.graph.NextRunID()
	started := time.Now()
	event := &domain.RunEvent{Timestamp: started, NodeID: nodeID, Kind: cfg.Kind, RunID: runID}
	if r.hooks.OnRunStart != nil {
		r.hooks.OnRunStart(ctx, event)
	}

	outcome, err := r.execute(ctx, exec, cfg)
	if err != nil {
		if r.hooks.OnRunFinish != nil {
			r.hooks.OnRunFinish(ctx, &domain.RunEvent{
				Timestamp: time.Now(), NodeID: nodeID, Kind: cfg.Kind, RunID: runID,
				Duration: time.Since(started), Err: err,
			})
		}
		return domain.TestResult{}, err
	}

	result := toResult(nodeID, runID, outcome, started)
	r.graph.Dispatch(ctx, domain.SetTestResult{NodeID: nodeID, Result: result})

	r.logger.Info("node run",
		"node", nodeID,
		"run", runID,
		"success", result.Success,
		"status", result.StatusCode,
		"duration", result.Duration,
	)
	if r.hooks.OnRunFinish != nil {
		finish := &domain.RunEvent{
			Timestamp: time.Now(), NodeID: nodeID, Kind: cfg.Kind, RunID: runID,
			Success: result.Success, Duration: result.Duration,
		}
		if !result.Success {
			finish.Err = errors.New(result.Error)
		}
		r.hooks.OnRunFinish(ctx, finish)
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, exec ports.NodeExecutor, cfg domain.NodeConfiguration) (ports.Outcome, error) {
	allowed, reason, err := r.interceptor(ctx, cfg)
	if err != nil {
		return ports.Outcome{}, fmt.Errorf("interceptor failed: %w", err)
	}
	if !allowed {
		return ports.Outcome{Error: reason, ErrorType: ErrorTypeBlocked}, nil
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := exec.Execute(runCtx, cfg, r.graph.ResolvedInputs(cfg.ID))
	if err != nil {
		r.logger.Warn("executor error", "node", cfg.ID, "err", err)
		return ports.Outcome{
			Error:     err.Error(),
			ErrorType: ErrorTypeExecutor,
			Duration:  time.Since(start),
		}, nil
	}
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	return outcome, nil
}

func toResult(nodeID string, runID uint64, o ports.Outcome, started time.Time) domain.TestResult {
	res := domain.TestResult{
		NodeID:     nodeID,
		RunID:      runID,
		Success:    o.Success,
		Value:      o.Value,
		StatusCode: o.StatusCode,
		Timestamp:  started,
		Duration:   o.Duration,
		RequestURL: o.RequestURL,
	}
	if !o.Success {
		res.Error = SanitizeMessage(o.Error)
		res.ErrorType = o.ErrorType
	}
	if len(o.Headers) > 0 {
		res.ResponseHeaders = make(map[string]string, len(o.Headers))
		for k := range o.Headers {
			res.ResponseHeaders[k] = SanitizeMessage(o.Headers.Get(k))
		}
	}
	return res
}

// RunPipeline runs every ancestor of nodeID and then the node itself, in
// dependency order. It stops at the first node that fails validation or
// finishes unsuccessfully and returns the results gathered so far.
func (r *Runner) RunPipeline(ctx context.Context, nodeID string) ([]domain.TestResult, error) {
	order, err := resolver.OrderFor(r.graph.State(), nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to order pipeline: %w", err)
	}
	return r.runOrdered(ctx, order, true)
}

// RunAll runs every node of the graph in dependency order. A failed node does
// not stop the run, but nodes downstream of it are skipped. The returned
// error joins every failure.
func (r *Runner) RunAll(ctx context.Context) ([]domain.TestResult, error) {
	order, err := resolver.TopologicalOrder(r.graph.State())
	if err != nil {
		return nil, fmt.Errorf("failed to order graph: %w", err)
	}
	return r.runOrdered(ctx, order, false)
}

func (r *Runner) runOrdered(ctx context.Context, order []string, stopOnFailure bool) ([]domain.TestResult, error) {
	var (
		results []domain.TestResult
		errs    []error
		failed  = make(map[string]bool)
	)
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if upstreamFailed(r.graph.UpstreamNodes(id), failed) {
			failed[id] = true
			r.logger.Debug("skipping node", "node", id, "reason", "upstream failed")
			continue
		}

		res, err := r.Run(ctx, id)
		switch {
		case err != nil:
			errs = append(errs, err)
			failed[id] = true
		case !res.Success:
			results = append(results, res)
			errs = append(errs, fmt.Errorf("%w: %s: %s", ErrRunFailed, id, res.Error))
			failed[id] = true
		default:
			results = append(results, res)
		}
		if stopOnFailure && failed[id] {
			break
		}
	}
	return results, errors.Join(errs...)
}

func upstreamFailed(upstream []domain.NodeConfiguration, failed map[string]bool) bool {
	for _, u := range upstream {
		if failed[u.ID] {
			return true
		}
	}
	return false
}
