package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithExecutor registers the executor used for nodes of the given kind.
func WithExecutor(kind domain.NodeKind, exec ports.NodeExecutor) Option {
	return func(r *Runner) {
		if exec == nil {
			delete(r.executors, kind)
			return
		}
		r.executors[kind] = exec
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds a single node run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLifecycleHooks registers run hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = r.hooks.Merge(hooks)
	}
}

// WithInterceptor configures the run policy middleware.
func WithInterceptor(interceptor Interceptor) Option {
	return func(r *Runner) {
		r.interceptor = interceptor
	}
}

// WithValidator replaces the configuration check run before every node.
func WithValidator(fn func(domain.NodeConfiguration) []domain.ValidationError) Option {
	return func(r *Runner) {
		if fn != nil {
			r.validate = fn
		}
	}
}
