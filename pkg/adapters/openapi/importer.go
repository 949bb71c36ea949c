// Package openapi turns the operations of an OpenAPI 3 document into source nodes.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
)

// ErrNoServer is returned when neither the document nor the options name a base URL.
var ErrNoServer = errors.New("openapi document has no server URL")

// Endpoint is one operation of the document, ready to become a node.
type Endpoint struct {
	NodeID      string
	OperationID string
	Summary     string
	Method      string
	URL         string
	Tags        []string
	PathParams  []string
	QueryParams []string
}

// Label is the operation summary, or its ID, or "METHOD path".
func (e Endpoint) Label() string {
	switch {
	case e.Summary != "":
		return e.Summary
	case e.OperationID != "":
		return e.OperationID
	}
	return e.Method + " " + e.URL
}

// Action returns the action creating the endpoint's node. Path parameters and
// required query parameters are present with empty values for the user to fill.
func (e Endpoint) Action() domain.Action {
	req := &domain.RequestSpec{Method: e.Method, URL: e.URL}
	if len(e.PathParams) > 0 {
		req.PathParams = make(map[string]string, len(e.PathParams))
		for _, p := range e.PathParams {
			req.PathParams[p] = ""
		}
	}
	if len(e.QueryParams) > 0 {
		req.QueryParams = make(map[string]string, len(e.QueryParams))
		for _, q := range e.QueryParams {
			req.QueryParams[q] = ""
		}
	}
	return domain.InitializeNode{
		NodeID:  e.NodeID,
		Kind:    domain.NodeKindSource,
		Request: req,
		Label:   e.Label(),
	}
}

// Actions returns the creation actions of every endpoint.
func Actions(endpoints []Endpoint) []domain.Action {
	out := make([]domain.Action, len(endpoints))
	for i, e := range endpoints {
		out[i] = e.Action()
	}
	return out
}

type options struct {
	baseURL  string
	tags     []string
	newID    func() string
	validate bool
}

// Option defines a functional option for Import.
type Option func(*options)

// WithBaseURL overrides the document's first server URL.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithTags keeps only operations carrying at least one of the tags.
func WithTags(tags ...string) Option {
	return func(o *options) {
		o.tags = tags
	}
}

// WithIDGenerator replaces the random node ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithValidation toggles document validation. It is on by default.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// Import reads an OpenAPI 3 document (JSON or YAML) and lists its operations,
// sorted by path and then by method.
func Import(ctx context.Context, data []byte, opts ...Option) ([]Endpoint, error) {
	o := options{newID: uuid.NewString, validate: true}
	for _, opt := range opts {
		opt(&o)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if o.validate {
		if err := doc.Validate(ctx); err != nil {
			return nil, fmt.Errorf("openapi document is invalid: %w", err)
		}
	}

	base := o.baseURL
	if base == "" {
		base = serverURL(doc.Servers)
	}
	if base == "" {
		return nil, ErrNoServer
	}
	base = strings.TrimRight(base, "/")

	if doc.Paths == nil {
		return nil, nil
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for p := range paths {
		keys = append(keys, p)
	}
	slices.Sort(keys)

	var endpoints []Endpoint
	for _, path := range keys {
		item := paths[path]
		for _, method := range methodOrder {
			op := item.GetOperation(method)
			if op == nil || !hasAnyTag(op.Tags, o.tags) {
				continue
			}
			e := Endpoint{
				NodeID:      o.newID(),
				OperationID: op.OperationID,
				Summary:     op.Summary,
				Method:      method,
				URL:         base + path,
				Tags:        op.Tags,
			}
			e.PathParams, e.QueryParams = parameters(item.Parameters, op.Parameters)
			endpoints = append(endpoints, e)
		}
	}
	return endpoints, nil
}

var methodOrder = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// serverURL returns the first server URL with its variables set to their defaults.
func serverURL(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return ""
	}
	s := servers[0]
	u := s.URL
	for name, v := range s.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	return u
}

// parameters merges path-level and operation-level parameters. Operation
// parameters override path parameters with the same name and location.
func parameters(shared, own openapi3.Parameters) (path, query []string) {
	type key struct{ in, name string }
	seen := make(map[key]bool)
	for _, params := range []openapi3.Parameters{own, shared} {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			k := key{p.In, p.Name}
			if seen[k] {
				continue
			}
			seen[k] = true
			switch {
			case p.In == openapi3.ParameterInPath:
				path = append(path, p.Name)
			case p.In == openapi3.ParameterInQuery && p.Required:
				query = append(query, p.Name)
			}
		}
	}
	slices.Sort(path)
	slices.Sort(query)
	return path, query
}

func hasAnyTag(tags, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range tags {
		if slices.Contains(want, t) {
			return true
		}
	}
	return false
}
