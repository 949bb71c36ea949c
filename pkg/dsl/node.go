package dsl

import (
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	cfg     domain.NodeConfiguration
	builder *Builder
}

// Label sets the display name of the node.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.cfg.Label = label
	return n
}

// Request sets the method and URL of a source node.
func (n *NodeBuilder) Request(method, url string) *NodeBuilder {
	req := n.request()
	req.Method = strings.ToUpper(method)
	req.URL = url
	return n
}

// Get is Request("GET", url).
func (n *NodeBuilder) Get(url string) *NodeBuilder {
	return n.Request("GET", url)
}

// Post is Request("POST", url) with a JSON body.
func (n *NodeBuilder) Post(url, body string) *NodeBuilder {
	n.Request("POST", url)
	n.request().Body = body
	return n
}

// Header sets a request header.
func (n *NodeBuilder) Header(key, value string) *NodeBuilder {
	req := n.request()
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers[key] = value
	return n
}

// Query sets a query parameter. A value of the form "{nodeId}" is filled
// from that upstream node at run time.
func (n *NodeBuilder) Query(key, value string) *NodeBuilder {
	req := n.request()
	if req.QueryParams == nil {
		req.QueryParams = make(map[string]string)
	}
	req.QueryParams[key] = value
	return n
}

// PathParam sets the value of a "{name}" or ":name" URL segment.
func (n *NodeBuilder) PathParam(key, value string) *NodeBuilder {
	req := n.request()
	if req.PathParams == nil {
		req.PathParams = make(map[string]string)
	}
	req.PathParams[key] = value
	return n
}

// Body sets the raw request body.
func (n *NodeBuilder) Body(body string) *NodeBuilder {
	n.request().Body = body
	return n
}

// FilterFields makes the node a filter_fields transform keeping the given paths.
func (n *NodeBuilder) FilterFields(paths ...string) *NodeBuilder {
	fields := make([]any, len(paths))
	for i, p := range paths {
		fields[i] = p
	}
	n.operation(domain.OperationFilterFields)["selectedFields"] = fields
	return n
}

// FilterArray makes the node a filter_array transform matching one field.
// Comma-separated values are alternatives.
func (n *NodeBuilder) FilterArray(field, value string) *NodeBuilder {
	params := n.operation(domain.OperationFilterArray)
	params["filterField"] = field
	params["filterValue"] = value
	return n
}

// Where adds an AND-ed condition to a filter_array transform.
func (n *NodeBuilder) Where(field, value string) *NodeBuilder {
	params := n.operation(domain.OperationFilterArray)
	conds, _ := params["filterFields"].([]any)
	params["filterFields"] = append(conds, map[string]any{"field": field, "value": value})
	return n
}

// Lua makes the node a custom_code transform running the given chunk.
func (n *NodeBuilder) Lua(code string) *NodeBuilder {
	n.operation(domain.OperationCustomCode)["customCode"] = code
	return n
}

// Operation makes the node a transform of the given type and merges params over its defaults.
func (n *NodeBuilder) Operation(op domain.OperationType, params map[string]any) *NodeBuilder {
	dst := n.operation(op)
	for k, v := range params {
		dst[k] = v
	}
	return n
}

// Select exposes the given paths of the node's result downstream.
func (n *NodeBuilder) Select(paths ...string) *NodeBuilder {
	n.cfg.OutputFieldSelections = domain.NormalizeSelections(append(n.cfg.OutputFieldSelections, paths...))
	return n
}

// Map records an input mapping from a local field to an upstream output.
func (n *NodeBuilder) Map(field, source string) *NodeBuilder {
	if n.cfg.InputMappings == nil {
		n.cfg.InputMappings = make(map[string]string)
	}
	n.cfg.InputMappings[field] = source
	return n
}

// From connects every source node to this one.
func (n *NodeBuilder) From(sources ...string) *NodeBuilder {
	for _, src := range sources {
		n.builder.connect(src, n.cfg.ID)
	}
	return n
}

// To connects this node to every target.
func (n *NodeBuilder) To(targets ...string) *NodeBuilder {
	for _, dst := range targets {
		n.builder.connect(n.cfg.ID, dst)
	}
	return n
}

// Build returns a copy of the configuration built so far.
func (n *NodeBuilder) Build() domain.NodeConfiguration {
	return n.cfg.Clone()
}

func (n *NodeBuilder) request() *domain.RequestSpec {
	n.cfg.Kind = domain.NodeKindSource
	n.cfg.Operation = nil
	if n.cfg.Request == nil {
		n.cfg.Request = &domain.RequestSpec{Method: "GET"}
	}
	return n.cfg.Request
}

// operation switches the node to the given transform and returns its params.
// Params set for another operation are kept, as the editor does.
func (n *NodeBuilder) operation(op domain.OperationType) map[string]any {
	if op == "" {
		op = domain.OperationFilterFields
	}
	if n.cfg.Kind != domain.NodeKindTransform || n.cfg.Operation == nil {
		n.cfg = withIdentity(domain.NewTransformConfiguration(n.cfg.ID, op), n.cfg)
	}
	n.cfg.Operation.Operation = op
	return n.cfg.Operation.Params
}

// withIdentity carries the label, selections and mappings of prev over to cfg.
func withIdentity(cfg, prev domain.NodeConfiguration) domain.NodeConfiguration {
	cfg.Label = prev.Label
	if len(prev.OutputFieldSelections) > 0 {
		cfg.OutputFieldSelections = prev.OutputFieldSelections
	}
	if prev.InputMappings != nil {
		cfg.InputMappings = prev.InputMappings
	}
	return cfg
}
