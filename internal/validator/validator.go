package validator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/nodeflow/pkg/adapters/request"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/fieldpath"
	"github.com/yuin/gopher-lua/parse"
)

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Validate checks a node configuration before it is run.
// A missing URL stops validation early, as do missing path parameters.
func Validate(cfg domain.NodeConfiguration) []domain.ValidationError {
	var issues []domain.ValidationError
	add := func(field string, sev domain.Severity, format string, args ...any) {
		issues = append(issues, domain.ValidationError{
			NodeID:   cfg.ID,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: sev,
		})
	}

	switch cfg.Kind {
	case domain.NodeKindSource:
		req := cfg.Request
		if req == nil || strings.TrimSpace(req.URL) == "" {
			add("url", domain.SeverityError, "URL is required")
			return issues
		}

		for _, name := range request.PathParameters(req.URL) {
			if strings.TrimSpace(req.PathParams[name]) == "" {
				add("pathParams", domain.SeverityError, "Path parameter '%s' is required", name)
			}
		}
		if len(issues) > 0 {
			return issues
		}

		method := strings.ToUpper(req.Method)
		if method == "" {
			method = http.MethodGet
		}
		if !knownMethods[method] {
			add("method", domain.SeverityError, "Method '%s' is not supported", req.Method)
		}

	case domain.NodeKindTransform:
		op := cfg.Operation
		if op == nil || op.Operation == "" {
			add("operation", domain.SeverityError, "Operation is required")
			break
		}
		switch op.Operation {
		case domain.OperationFilterFields:
		case domain.OperationFilterArray:
			if !hasFilterValue(op.Params) {
				add("params", domain.SeverityError, "Filter value is required")
			}
		case domain.OperationCustomCode:
			code, _ := op.Params["customCode"].(string)
			if _, err := parse.Parse(strings.NewReader(code), "custom_code"); err != nil {
				add("params", domain.SeverityError, "Custom code does not compile: %v", err)
			}
		default:
			add("operation", domain.SeverityError, "Operation '%s' is not supported", op.Operation)
		}

	default:
		add("kind", domain.SeverityError, "Node kind '%s' is not supported", cfg.Kind)
	}

	for _, sel := range cfg.OutputFieldSelections {
		if _, err := fieldpath.Parse(sel); err != nil {
			add("outputFieldSelections", domain.SeverityWarning, "Selection '%s' is not a valid path", sel)
		}
	}
	return issues
}

// HasErrors reports whether any issue blocks a run.
func HasErrors(issues []domain.ValidationError) bool {
	for _, i := range issues {
		if i.Severity != domain.SeverityWarning {
			return true
		}
	}
	return false
}

func hasFilterValue(params map[string]any) bool {
	if conds, ok := params["filterFields"].([]any); ok && len(conds) > 0 {
		for _, c := range conds {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if nonBlank(m["field"]) && nonBlank(m["value"]) {
				return true
			}
		}
		return false
	}
	return nonBlank(params["filterValue"])
}

func nonBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}
