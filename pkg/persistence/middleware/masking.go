package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Mask replaces every secret value before it reaches storage.
const Mask = "***"

// DefaultSecretPatterns match the header, parameter and field names that
// usually carry credentials.
var DefaultSecretPatterns = []string{
	`(?i)^authorization$`,
	`(?i)^proxy-authorization$`,
	`(?i)api[-_]?key`,
	`(?i)token`,
	`(?i)secret`,
	`(?i)password`,
	`(?i)^cookie$`,
	`(?i)^set-cookie$`,
}

type maskingMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewMaskingMiddleware creates a middleware that masks values whose key matches
// one of the patterns: request headers, query and path params, operation params,
// response headers and object keys inside stored results.
// Masking is one way; loaded snapshots keep the mask.
func NewMaskingMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &maskingMiddleware{next: next, patterns: patterns}
	}
}

func (m *maskingMiddleware) Save(ctx context.Context, graphID string, state *domain.State) error {
	// Clone so the live graph keeps its secrets.
	cloned := state.Clone()

	for id, cfg := range cloned.Configurations {
		if cfg.Request != nil {
			m.maskStrings(cfg.Request.Headers)
			m.maskStrings(cfg.Request.QueryParams)
			m.maskStrings(cfg.Request.PathParams)
		}
		if cfg.Operation != nil {
			cfg.Operation.Params = m.maskAny(cfg.Operation.Params)
		}
		cloned.Configurations[id] = cfg
	}
	for id, r := range cloned.TestResults {
		m.maskStrings(r.ResponseHeaders)
		r.Value = m.maskValue(r.Value)
		cloned.TestResults[id] = r
	}

	return m.next.Save(ctx, graphID, cloned)
}

func (m *maskingMiddleware) Load(ctx context.Context, graphID string) (*domain.State, error) {
	return m.next.Load(ctx, graphID)
}

func (m *maskingMiddleware) Delete(ctx context.Context, graphID string) error {
	return m.next.Delete(ctx, graphID)
}

func (m *maskingMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *maskingMiddleware) secret(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *maskingMiddleware) maskStrings(in map[string]string) {
	for k := range in {
		if m.secret(k) {
			in[k] = Mask
		}
	}
}

// maskAny returns a masked copy; Params maps are shared with the live state after Clone.
func (m *maskingMiddleware) maskAny(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case m.secret(k):
			out[k] = Mask
		default:
			if sub, ok := v.(map[string]any); ok {
				out[k] = m.maskAny(sub)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func (m *maskingMiddleware) maskValue(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindObject:
		members := v.Members()
		for i, mem := range members {
			if m.secret(mem.Key) {
				members[i].Value = value.String(Mask)
				continue
			}
			members[i].Value = m.maskValue(mem.Value)
		}
		return value.Object(members...)
	case value.KindArray:
		items := v.Items()
		for i, item := range items {
			items[i] = m.maskValue(item)
		}
		return value.Array(items...)
	default:
		return v
	}
}
