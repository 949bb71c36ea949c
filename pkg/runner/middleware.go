package runner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
)

// ErrorTypeBlocked marks results of runs an interceptor refused.
const ErrorTypeBlocked = "blocked"

// Interceptor decides whether a node may run. It returns true to proceed, or
// false with a reason that is recorded as the node's failed result.
// A returned error aborts the run without recording a result.
type Interceptor func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error)

// MultiInterceptor chains interceptors. The first refusal wins.
func MultiInterceptor(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		for _, interceptor := range interceptors {
			allowed, reason, err := interceptor(ctx, cfg)
			if err != nil {
				return false, "", err
			}
			if !allowed {
				return false, reason, nil
			}
		}
		return true, "", nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() Interceptor {
	return func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		return true, "", nil
	}
}

// AllowHostsMiddleware only lets source nodes reach the listed hosts.
// Entries match the URL host exactly or, when written as ".example.com", any subdomain.
// Transform nodes are always allowed.
func AllowHostsMiddleware(hosts ...string) Interceptor {
	return func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		if cfg.Kind != domain.NodeKindSource || cfg.Request == nil {
			return true, "", nil
		}
		u, err := url.Parse(cfg.Request.URL)
		if err != nil {
			return false, fmt.Sprintf("invalid URL: %v", err), nil
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range hosts {
			h = strings.ToLower(h)
			if host == h || (strings.HasPrefix(h, ".") && strings.HasSuffix(host, h)) {
				return true, "", nil
			}
		}
		return false, fmt.Sprintf("host %q is not allowed", host), nil
	}
}

// ReadOnlyMiddleware refuses source nodes whose method changes remote state.
func ReadOnlyMiddleware() Interceptor {
	return func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		if cfg.Kind != domain.NodeKindSource || cfg.Request == nil {
			return true, "", nil
		}
		switch strings.ToUpper(cfg.Request.Method) {
		case "", "GET", "HEAD", "OPTIONS":
			return true, "", nil
		}
		return false, fmt.Sprintf("method %s is not allowed in read-only mode", strings.ToUpper(cfg.Request.Method)), nil
	}
}
