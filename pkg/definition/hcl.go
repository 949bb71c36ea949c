package definition

import (
	"fmt"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile is the top-level structure of an HCL definition:
//
//	name = "users"
//
//	node "users" {
//	  request {
//	    url = "https://api.example.com/users"
//	  }
//	  select = ["id", "name"]
//	}
//
//	node "active" {
//	  from = ["users"]
//	  operation "filter_array" {
//	    where {
//	      field = "active"
//	      value = "true"
//	    }
//	  }
//	}
type hclFile struct {
	Name        string           `hcl:"name,optional"`
	Nodes       []*hclNode       `hcl:"node,block"`
	Connections []*hclConnection `hcl:"connection,block"`
}

type hclNode struct {
	ID            string            `hcl:"id,label"`
	Label         string            `hcl:"label,optional"`
	Select        []string          `hcl:"select,optional"`
	From          []string          `hcl:"from,optional"`
	InputMappings map[string]string `hcl:"input_mappings,optional"`
	Request       *hclRequest       `hcl:"request,block"`
	Operation     *hclOperation     `hcl:"operation,block"`
}

type hclRequest struct {
	Method  string            `hcl:"method,optional"`
	URL     string            `hcl:"url"`
	Headers map[string]string `hcl:"headers,optional"`
	Query   map[string]string `hcl:"query,optional"`
	Path    map[string]string `hcl:"path,optional"`
	Body    string            `hcl:"body,optional"`
}

type hclOperation struct {
	Type           string          `hcl:"type,label"`
	SelectedFields []string        `hcl:"selected_fields,optional"`
	FilterField    string          `hcl:"filter_field,optional"`
	FilterValue    string          `hcl:"filter_value,optional"`
	CustomCode     string          `hcl:"custom_code,optional"`
	Where          []*hclCondition `hcl:"where,block"`
}

type hclCondition struct {
	Field string `hcl:"field"`
	Value string `hcl:"value"`
}

type hclConnection struct {
	From        string `hcl:"from"`
	To          string `hcl:"to"`
	SourceField string `hcl:"source_field,optional"`
	TargetField string `hcl:"target_field,optional"`
}

func parseHCL(data []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	def := &Definition{Name: parsed.Name}
	for _, n := range parsed.Nodes {
		node := Node{
			ID:            n.ID,
			Label:         n.Label,
			Select:        n.Select,
			From:          n.From,
			InputMappings: n.InputMappings,
		}
		if r := n.Request; r != nil {
			node.Request = &domain.RequestSpec{
				Method:      r.Method,
				URL:         r.URL,
				Headers:     r.Headers,
				QueryParams: r.Query,
				PathParams:  r.Path,
				Body:        r.Body,
			}
		}
		if op := n.Operation; op != nil {
			node.Operation = &Operation{Type: domain.OperationType(op.Type), Params: op.params()}
		}
		def.Nodes = append(def.Nodes, node)
	}
	for _, c := range parsed.Connections {
		def.Connections = append(def.Connections, Edge{
			From:        c.From,
			To:          c.To,
			SourceField: c.SourceField,
			TargetField: c.TargetField,
		})
	}
	return def, nil
}

// params maps the HCL attributes onto the executor's parameter names.
// Unset attributes are left out so operation defaults apply.
func (o *hclOperation) params() map[string]any {
	params := make(map[string]any)
	if o.SelectedFields != nil {
		fields := make([]any, len(o.SelectedFields))
		for i, f := range o.SelectedFields {
			fields[i] = f
		}
		params["selectedFields"] = fields
	}
	if o.FilterField != "" {
		params["filterField"] = o.FilterField
	}
	if o.FilterValue != "" {
		params["filterValue"] = o.FilterValue
	}
	if o.CustomCode != "" {
		params["customCode"] = o.CustomCode
	}
	if len(o.Where) > 0 {
		conds := make([]any, len(o.Where))
		for i, w := range o.Where {
			conds[i] = map[string]any{"field": w.Field, "value": w.Value}
		}
		params["filterFields"] = conds
	}
	return params
}
