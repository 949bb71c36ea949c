package domain

import "slices"

// NodeKind distinguishes request nodes from data operation nodes.
type NodeKind string

const (
	// NodeKindSource wraps an external HTTP request.
	NodeKindSource NodeKind = "source"
	// NodeKindTransform wraps a data operation over upstream inputs.
	NodeKindTransform NodeKind = "transform"
)

// OperationType names a transform operation.
type OperationType string

const (
	OperationFilterFields OperationType = "filter_fields"
	OperationFilterArray  OperationType = "filter_array"
	OperationCustomCode   OperationType = "custom_code"
)

// DefaultCustomCode is the script a fresh custom_code transform starts with.
const DefaultCustomCode = "return data"

// RequestSpec describes the HTTP request behind a source node.
// The core never interprets it; executors do.
type RequestSpec struct {
	Method      string            `json:"method" yaml:"method"`
	URL         string            `json:"url" yaml:"url"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	PathParams  map[string]string `json:"pathParams,omitempty" yaml:"pathParams,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// OperationConfig describes the data operation behind a transform node.
// Params are operation specific and decoded by the transform executor.
type OperationConfig struct {
	Operation OperationType  `json:"operation" yaml:"operation"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// NodeConfiguration is the user-authored definition of a graph node.
type NodeConfiguration struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	Request   *RequestSpec     `json:"request,omitempty"`
	Operation *OperationConfig `json:"operation,omitempty"`

	// OutputFieldSelections names the parts of the last result exposed downstream.
	// It is an ordered set: duplicates are removed on every write.
	OutputFieldSelections []string `json:"outputFieldSelections"`

	// InputMappings maps an input field to a source node output. Passed through untouched.
	InputMappings map[string]string `json:"inputMappings,omitempty"`
}

// ConfigPatch is a partial NodeConfiguration. Nil fields are left as they are,
// non-nil fields replace the stored value wholesale.
type ConfigPatch struct {
	Kind                  *NodeKind         `json:"kind,omitempty"`
	Label                 *string           `json:"label,omitempty"`
	Request               *RequestSpec      `json:"request,omitempty"`
	Operation             *OperationConfig  `json:"operation,omitempty"`
	OutputFieldSelections []string          `json:"outputFieldSelections,omitempty"`
	InputMappings         map[string]string `json:"inputMappings,omitempty"`

	// ClearSelections empties OutputFieldSelections. An empty slice cannot express
	// that on its own once the patch has been through JSON.
	ClearSelections bool `json:"clearSelections,omitempty"`
}

// Apply returns a copy of cfg with the patch merged in. The ID is never changed.
func (p ConfigPatch) Apply(cfg NodeConfiguration) NodeConfiguration {
	out := cfg
	if p.Kind != nil {
		out.Kind = *p.Kind
	}
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.Request != nil {
		req := p.Request.clone()
		out.Request = &req
	}
	if p.Operation != nil {
		op := p.Operation.clone()
		out.Operation = &op
	}
	if p.ClearSelections {
		out.OutputFieldSelections = []string{}
	}
	if p.OutputFieldSelections != nil {
		out.OutputFieldSelections = NormalizeSelections(p.OutputFieldSelections)
	}
	if p.InputMappings != nil {
		out.InputMappings = cloneStrings(p.InputMappings)
	}
	if out.OutputFieldSelections == nil {
		out.OutputFieldSelections = []string{}
	}
	return out
}

// NormalizeSelections removes duplicates, keeping first occurrences in order.
func NormalizeSelections(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c NodeConfiguration) Clone() NodeConfiguration {
	out := c
	if c.Request != nil {
		req := c.Request.clone()
		out.Request = &req
	}
	if c.Operation != nil {
		op := c.Operation.clone()
		out.Operation = &op
	}
	out.OutputFieldSelections = slices.Clone(c.OutputFieldSelections)
	if out.OutputFieldSelections == nil {
		out.OutputFieldSelections = []string{}
	}
	out.InputMappings = cloneStrings(c.InputMappings)
	return out
}

func (r RequestSpec) clone() RequestSpec {
	out := r
	out.Headers = cloneStrings(r.Headers)
	out.QueryParams = cloneStrings(r.QueryParams)
	out.PathParams = cloneStrings(r.PathParams)
	return out
}

func (o OperationConfig) clone() OperationConfig {
	out := o
	if o.Params != nil {
		out.Params = make(map[string]any, len(o.Params))
		for k, v := range o.Params {
			out.Params[k] = v
		}
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewSourceConfiguration returns the default configuration of a request node.
func NewSourceConfiguration(id string, req *RequestSpec) NodeConfiguration {
	spec := RequestSpec{Method: "GET"}
	if req != nil {
		spec = req.clone()
		if spec.Method == "" {
			spec.Method = "GET"
		}
	}
	if spec.Body == "" && (spec.Method == "POST" || spec.Method == "PUT") {
		spec.Body = "{}"
	}
	return NodeConfiguration{
		ID:                    id,
		Kind:                  NodeKindSource,
		Request:               &spec,
		OutputFieldSelections: []string{},
		InputMappings:         map[string]string{},
	}
}

// NewTransformConfiguration returns the default configuration of a data operation node.
func NewTransformConfiguration(id string, op OperationType) NodeConfiguration {
	if op == "" {
		op = OperationFilterFields
	}
	return NodeConfiguration{
		ID:   id,
		Kind: NodeKindTransform,
		Operation: &OperationConfig{
			Operation: op,
			Params: map[string]any{
				"selectedFields": []any{},
				"filterField":    "",
				"filterValue":    "",
				"customCode":     DefaultCustomCode,
			},
		},
		OutputFieldSelections: []string{},
		InputMappings:         map[string]string{},
	}
}
