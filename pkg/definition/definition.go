// Package definition loads node graphs from workflow files.
//
// YAML, JSON and HCL files describe the same model: a list of nodes, each
// either a request or a transform, plus the edges between them. Edges can be
// written on the target node ("from") or in a separate connections list.
package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// Format names a definition file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// Definition is a whole graph as written in a workflow file.
type Definition struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes       []Node `yaml:"nodes" json:"nodes"`
	Connections []Edge `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// Node is one node of a definition. Exactly one of Request and Operation is set.
type Node struct {
	ID            string              `yaml:"id" json:"id"`
	Label         string              `yaml:"label,omitempty" json:"label,omitempty"`
	Request       *domain.RequestSpec `yaml:"request,omitempty" json:"request,omitempty"`
	Operation     *Operation          `yaml:"operation,omitempty" json:"operation,omitempty"`
	Select        []string            `yaml:"select,omitempty" json:"select,omitempty"`
	InputMappings map[string]string   `yaml:"inputMappings,omitempty" json:"inputMappings,omitempty"`
	From          []string            `yaml:"from,omitempty" json:"from,omitempty"`
}

// Operation is the transform behind a node.
type Operation struct {
	Type   domain.OperationType `yaml:"type" json:"type"`
	Params map[string]any       `yaml:"params,omitempty" json:"params,omitempty"`
}

// Edge connects two nodes.
type Edge struct {
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
	SourceField string `yaml:"sourceField,omitempty" json:"sourceField,omitempty"`
	TargetField string `yaml:"targetField,omitempty" json:"targetField,omitempty"`
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported definition file extension %q", filepath.Ext(path))
}

// Load reads a definition file, choosing the decoder by extension.
func Load(path string) (*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	def, err := Parse(data, format, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return def, nil
}

// Parse decodes a definition. The filename is only used in HCL diagnostics.
func Parse(data []byte, format Format, filename string) (*Definition, error) {
	var def Definition
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse yaml definition: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse json definition: %w", err)
		}
	case FormatHCL:
		parsed, err := parseHCL(data, filename)
		if err != nil {
			return nil, err
		}
		def = *parsed
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the shape of the definition without building the graph.
func (d *Definition) Validate() error {
	seen := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: id is required", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("node %q: duplicate id", n.ID)
		}
		seen[n.ID] = true
		if n.Request != nil && n.Operation != nil {
			return fmt.Errorf("node %q: request and operation are mutually exclusive", n.ID)
		}
	}
	return nil
}

// Builder compiles the definition into a DSL builder.
func (d *Definition) Builder() *dsl.Builder {
	b := dsl.New()
	for _, n := range d.Nodes {
		nb := b.Add(n.ID)
		switch {
		case n.Operation != nil:
			nb.Operation(n.Operation.Type, n.Operation.Params)
		case n.Request != nil:
			nb.Request(n.Request.Method, n.Request.URL)
			for k, v := range n.Request.Headers {
				nb.Header(k, v)
			}
			for k, v := range n.Request.QueryParams {
				nb.Query(k, v)
			}
			for k, v := range n.Request.PathParams {
				nb.PathParam(k, v)
			}
			if n.Request.Body != "" {
				nb.Body(n.Request.Body)
			}
		}
		nb.Label(n.Label).Select(n.Select...)
		for k, v := range n.InputMappings {
			nb.Map(k, v)
		}
		nb.From(n.From...)
	}
	for _, e := range d.Connections {
		b.Link(domain.Connection{
			SourceNodeID: e.From,
			TargetNodeID: e.To,
			SourceField:  e.SourceField,
			TargetField:  e.TargetField,
		})
	}
	return b
}

// Actions returns the actions that recreate the graph. It fails when an
// edge would be refused by the graph.
func (d *Definition) Actions() ([]domain.Action, error) {
	b := d.Builder()
	if _, err := b.Build(); err != nil {
		return nil, fmt.Errorf("invalid definition %q: %w", d.Name, err)
	}
	return b.Actions(), nil
}

// FromState writes the user-authored part of a graph back as a definition.
// Nodes are sorted by ID. Plain edges are attached to their target node,
// edges carrying field names go to the connections list.
func FromState(name string, s *domain.State) *Definition {
	def := &Definition{Name: name}
	if s == nil {
		return def
	}
	from := make(map[string][]string)
	for _, c := range s.Connections {
		if c.SourceField != "" || c.TargetField != "" {
			def.Connections = append(def.Connections, Edge{
				From:        c.SourceNodeID,
				To:          c.TargetNodeID,
				SourceField: c.SourceField,
				TargetField: c.TargetField,
			})
			continue
		}
		from[c.TargetNodeID] = append(from[c.TargetNodeID], c.SourceNodeID)
	}

	for _, id := range s.NodeIDs() {
		cfg := s.Configurations[id].Clone()
		n := Node{
			ID:     id,
			Label:  cfg.Label,
			Select: cfg.OutputFieldSelections,
			From:   from[id],
		}
		if len(cfg.InputMappings) > 0 {
			n.InputMappings = cfg.InputMappings
		}
		if cfg.Kind == domain.NodeKindTransform && cfg.Operation != nil {
			n.Operation = &Operation{Type: cfg.Operation.Operation, Params: cfg.Operation.Params}
		} else {
			n.Request = cfg.Request
		}
		def.Nodes = append(def.Nodes, n)
	}
	return def
}

// Marshal encodes the definition in the given format. HCL output is not supported.
func (d *Definition) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	}
	return nil, fmt.Errorf("cannot encode definition as %q", format)
}
