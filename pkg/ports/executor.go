package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Outcome is what an executor observed while running a node.
type Outcome struct {
	Success    bool
	Value      value.Value
	Error      string
	ErrorType  string
	StatusCode int
	RequestURL string
	Headers    http.Header
	Duration   time.Duration
}

// NodeExecutor runs one node given its projected upstream inputs.
//
// Failures of the node itself (bad status, script error) are reported through a
// non-successful Outcome. A returned error means the executor could not even
// attempt the run.
type NodeExecutor interface {
	Execute(ctx context.Context, cfg domain.NodeConfiguration, inputs map[string]value.Value) (Outcome, error)
}

// ExecutorFunc adapts a function to NodeExecutor.
type ExecutorFunc func(ctx context.Context, cfg domain.NodeConfiguration, inputs map[string]value.Value) (Outcome, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, cfg domain.NodeConfiguration, inputs map[string]value.Value) (Outcome, error) {
	return f(ctx, cfg, inputs)
}
