// Package transform executes data operation nodes over their upstream inputs.
//
// The data an operation sees is the value of the single upstream node, or an
// object keyed by upstream node ID when the node has more than one input.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/projection"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/mitchellh/mapstructure"
)

// Error types reported in failed outcomes.
const (
	ErrorTypeParams    = "invalid_params"
	ErrorTypeOperation = "operation_error"
	ErrorTypeScript    = "script_error"
	ErrorTypeTimeout   = "timeout"
)

var (
	// ErrNoOperation is returned for nodes without an operation.
	ErrNoOperation = errors.New("node has no operation")
	// ErrUnknownOperation is reported for operations this executor does not implement.
	ErrUnknownOperation = errors.New("unknown operation")
)

// FilterFieldsParams configures filter_fields.
type FilterFieldsParams struct {
	SelectedFields []string `mapstructure:"selectedFields"`
}

// FieldCondition is one AND-ed condition of filter_array.
type FieldCondition struct {
	Field string `mapstructure:"field"`
	Value string `mapstructure:"value"`
}

// FilterArrayParams configures filter_array. FilterFields takes precedence over
// the single FilterField/FilterValue pair when it is non-empty.
type FilterArrayParams struct {
	FilterField  string           `mapstructure:"filterField"`
	FilterValue  string           `mapstructure:"filterValue"`
	FilterFields []FieldCondition `mapstructure:"filterFields"`
}

// CustomCodeParams configures custom_code.
type CustomCodeParams struct {
	CustomCode string `mapstructure:"customCode"`
}

// Executor implements ports.NodeExecutor for transform nodes.
type Executor struct {
	logger        *slog.Logger
	scriptTimeout time.Duration
}

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithLogger sets a custom structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithScriptTimeout bounds custom_code scripts. Zero relies on the caller's context only.
func WithScriptTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.scriptTimeout = d
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.NodeExecutor = (*Executor)(nil)

// Execute applies the node's operation to its inputs.
func (e *Executor) Execute(ctx context.Context, cfg domain.NodeConfiguration, inputs map[string]value.Value) (ports.Outcome, error) {
	if cfg.Operation == nil {
		return ports.Outcome{}, fmt.Errorf("%w: %s", ErrNoOperation, cfg.ID)
	}

	start := time.Now()
	data := InputData(inputs)
	op := cfg.Operation

	e.logger.Debug("transform", "node", cfg.ID, "operation", op.Operation, "inputs", len(inputs))

	var (
		out     value.Value
		err     error
		errType = ErrorTypeOperation
	)
	switch op.Operation {
	case domain.OperationFilterFields:
		var p FilterFieldsParams
		if err = decodeParams(op.Params, &p); err != nil {
			errType = ErrorTypeParams
			break
		}
		out = projection.Project(data, p.SelectedFields)
	case domain.OperationFilterArray:
		var p FilterArrayParams
		if err = decodeParams(op.Params, &p); err != nil {
			errType = ErrorTypeParams
			break
		}
		out, err = FilterArray(data, p)
	case domain.OperationCustomCode:
		var p CustomCodeParams
		if err = decodeParams(op.Params, &p); err != nil {
			errType = ErrorTypeParams
			break
		}
		runCtx := ctx
		if e.scriptTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, e.scriptTimeout)
			defer cancel()
		}
		out, err = RunScript(runCtx, p.CustomCode, data)
		errType = ErrorTypeScript
		if err != nil && runCtx.Err() != nil {
			errType = ErrorTypeTimeout
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOperation, op.Operation)
		errType = ErrorTypeParams
	}

	if err != nil {
		return ports.Outcome{
			Error:     err.Error(),
			ErrorType: errType,
			Duration:  time.Since(start),
		}, nil
	}
	return ports.Outcome{
		Success:  true,
		Value:    out,
		Duration: time.Since(start),
	}, nil
}

// InputData shapes the resolved inputs into the value an operation receives.
// No inputs give null and a single input is passed as is. Several inputs give
// an object keyed by source node ID in sorted order.
func InputData(inputs map[string]value.Value) value.Value {
	switch len(inputs) {
	case 0:
		return value.Null()
	case 1:
		for _, v := range inputs {
			return v
		}
	}
	members := make([]value.Member, 0, len(inputs))
	for _, id := range slices.Sorted(maps.Keys(inputs)) {
		members = append(members, value.Member{Key: id, Value: inputs[id]})
	}
	return value.Object(members...)
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
