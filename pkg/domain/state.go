package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/aretw0/nodeflow/pkg/value"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a single configuration problem reported for a node.
type ValidationError struct {
	NodeID   string   `json:"nodeId"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// TestResult is the outcome of the most recent run of a node.
// A stored result is never modified; a newer one replaces it.
type TestResult struct {
	NodeID string `json:"nodeId"`

	// RunID orders completions of the same node. Zero means unsequenced.
	RunID uint64 `json:"runId,omitempty"`

	Success   bool        `json:"success"`
	Value     value.Value `json:"response"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"errorType,omitempty"`

	StatusCode      int               `json:"statusCode,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	Duration        time.Duration     `json:"executionTime"`
	RequestURL      string            `json:"requestUrl,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
}

// Connection is a directed edge from a source node field to a target node field.
type Connection struct {
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	SourceField  string `json:"sourceField"`
	TargetField  string `json:"targetField"`
}

// State is the whole graph snapshot. A State is never mutated once built:
// Reduce returns a new one that shares untouched maps with the old.
type State struct {
	Configurations   map[string]NodeConfiguration `json:"configurations"`
	TestResults      map[string]TestResult        `json:"testResults"`
	ValidationErrors map[string][]ValidationError `json:"validationErrors"`
	Connections      []Connection                 `json:"connections"`

	// Revision counts effective transitions.
	Revision uint64 `json:"revision"`

	// Sealed holds an opaque payload written by storage middleware in place of
	// the collections above. It is never set on a live graph.
	Sealed string `json:"sealed,omitempty"`
}

// NewState returns an empty graph.
func NewState() *State {
	return &State{
		Configurations:   map[string]NodeConfiguration{},
		TestResults:      map[string]TestResult{},
		ValidationErrors: map[string][]ValidationError{},
		Connections:      []Connection{},
	}
}

// IsEmpty reports whether the graph holds nothing at all.
func (s *State) IsEmpty() bool {
	return s == nil || (len(s.Configurations) == 0 &&
		len(s.TestResults) == 0 &&
		len(s.ValidationErrors) == 0 &&
		len(s.Connections) == 0)
}

// HasNode reports whether id names a configured node.
func (s *State) HasNode(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Configurations[id]
	return ok
}

// NodeIDs returns the configured node IDs sorted.
func (s *State) NodeIDs() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.Configurations))
}

// MaxRunID returns the highest run ID among stored results.
func (s *State) MaxRunID() uint64 {
	var highest uint64
	if s == nil {
		return 0
	}
	for _, r := range s.TestResults {
		if r.RunID > highest {
			highest = r.RunID
		}
	}
	return highest
}

// Normalize fills nil collections, typically after decoding a persisted snapshot.
func (s *State) Normalize() *State {
	if s == nil {
		return NewState()
	}
	if s.Configurations == nil {
		s.Configurations = map[string]NodeConfiguration{}
	}
	if s.TestResults == nil {
		s.TestResults = map[string]TestResult{}
	}
	if s.ValidationErrors == nil {
		s.ValidationErrors = map[string][]ValidationError{}
	}
	if s.Connections == nil {
		s.Connections = []Connection{}
	}
	for id, cfg := range s.Configurations {
		if cfg.OutputFieldSelections == nil {
			cfg.OutputFieldSelections = []string{}
			s.Configurations[id] = cfg
		}
	}
	return s
}

// Clone returns a deep copy, for callers that need to hand a state to code
// that may modify it.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	out := &State{
		Configurations:   make(map[string]NodeConfiguration, len(s.Configurations)),
		TestResults:      make(map[string]TestResult, len(s.TestResults)),
		ValidationErrors: make(map[string][]ValidationError, len(s.ValidationErrors)),
		Connections:      slices.Clone(s.Connections),
		Revision:         s.Revision,
		Sealed:           s.Sealed,
	}
	for k, v := range s.Configurations {
		out.Configurations[k] = v.Clone()
	}
	for k, v := range s.TestResults {
		v.ResponseHeaders = maps.Clone(v.ResponseHeaders)
		out.TestResults[k] = v
	}
	for k, v := range s.ValidationErrors {
		out.ValidationErrors[k] = slices.Clone(v)
	}
	if out.Connections == nil {
		out.Connections = []Connection{}
	}
	return out
}
