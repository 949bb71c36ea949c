package domain

import (
	"maps"
	"reflect"
	"slices"
)

// Reduce applies a to s and returns the next state. When the action has no
// effect the original pointer is returned with changed == false. Reduce never
// modifies s.
func Reduce(s *State, a Action) (next *State, changed bool) {
	if s == nil {
		s = NewState()
	}

	switch act := a.(type) {
	case UpsertNodeConfiguration:
		return reduceUpsert(s, act)
	case InitializeNode:
		return reduceInitialize(s, act)
	case SetTestResult:
		return reduceSetResult(s, act)
	case AddValidationError:
		return reduceAddError(s, act)
	case ClearValidationErrors:
		return reduceClearErrors(s, act)
	case AddConnection:
		return reduceConnect(s, act)
	case RemoveConnection:
		return reduceDisconnect(s, act)
	case RemoveNode:
		return reduceRemoveNode(s, act)
	case ClearAll:
		if s.IsEmpty() {
			return s, false
		}
		next := NewState()
		next.Revision = s.Revision + 1
		return next, true
	}
	return s, false
}

// derive returns a shallow copy of s with the revision bumped. Callers replace
// the collections they touch.
func derive(s *State) *State {
	next := *s
	next.Revision = s.Revision + 1
	return &next
}

func reduceUpsert(s *State, act UpsertNodeConfiguration) (*State, bool) {
	if act.NodeID == "" {
		return s, false
	}
	current, ok := s.Configurations[act.NodeID]
	if !ok {
		current = NodeConfiguration{
			ID:                    act.NodeID,
			Kind:                  NodeKindSource,
			OutputFieldSelections: []string{},
		}
		if act.Patch.Operation != nil {
			current.Kind = NodeKindTransform
		}
	}

	updated := act.Patch.Apply(current)
	updated.ID = act.NodeID
	if ok && reflect.DeepEqual(current, updated) {
		return s, false
	}

	next := derive(s)
	next.Configurations = maps.Clone(s.Configurations)
	next.Configurations[act.NodeID] = updated
	return next, true
}

func reduceInitialize(s *State, act InitializeNode) (*State, bool) {
	if act.NodeID == "" {
		return s, false
	}
	kind := act.Kind
	if kind == "" {
		kind = NodeKindSource
		if act.Operation != "" {
			kind = NodeKindTransform
		}
	}

	var cfg NodeConfiguration
	switch kind {
	case NodeKindTransform:
		cfg = NewTransformConfiguration(act.NodeID, act.Operation)
	default:
		cfg = NewSourceConfiguration(act.NodeID, act.Request)
	}
	cfg.Label = act.Label

	if current, ok := s.Configurations[act.NodeID]; ok && reflect.DeepEqual(current, cfg) {
		return s, false
	}

	next := derive(s)
	next.Configurations = maps.Clone(s.Configurations)
	next.Configurations[act.NodeID] = cfg
	return next, true
}

func reduceSetResult(s *State, act SetTestResult) (*State, bool) {
	if !s.HasNode(act.NodeID) {
		return s, false
	}
	incoming := act.Result
	incoming.NodeID = act.NodeID
	if stored, ok := s.TestResults[act.NodeID]; ok && IsStale(stored, incoming) {
		return s, false
	}

	next := derive(s)
	next.TestResults = maps.Clone(s.TestResults)
	next.TestResults[act.NodeID] = incoming
	return next, true
}

// IsStale reports whether incoming was started before stored and must not replace it.
// Results without a run ID are never stale and never make others stale.
func IsStale(stored, incoming TestResult) bool {
	return stored.RunID != 0 && incoming.RunID != 0 && incoming.RunID < stored.RunID
}

func reduceAddError(s *State, act AddValidationError) (*State, bool) {
	if !s.HasNode(act.NodeID) {
		return s, false
	}
	issue := act.Error
	issue.NodeID = act.NodeID
	if issue.Severity == "" {
		issue.Severity = SeverityError
	}

	next := derive(s)
	next.ValidationErrors = maps.Clone(s.ValidationErrors)
	list := slices.Clip(s.ValidationErrors[act.NodeID])
	next.ValidationErrors[act.NodeID] = append(list, issue)
	return next, true
}

func reduceClearErrors(s *State, act ClearValidationErrors) (*State, bool) {
	if _, ok := s.ValidationErrors[act.NodeID]; !ok {
		return s, false
	}
	next := derive(s)
	next.ValidationErrors = maps.Clone(s.ValidationErrors)
	delete(next.ValidationErrors, act.NodeID)
	return next, true
}

func reduceConnect(s *State, act AddConnection) (*State, bool) {
	c := act.Connection
	if c.SourceNodeID == c.TargetNodeID {
		return s, false
	}
	if !s.HasNode(c.SourceNodeID) || !s.HasNode(c.TargetNodeID) {
		return s, false
	}
	if slices.Contains(s.Connections, c) {
		return s, false
	}
	if Reachable(s, c.TargetNodeID, c.SourceNodeID) {
		return s, false
	}

	next := derive(s)
	next.Connections = append(slices.Clip(s.Connections), c)
	return next, true
}

func reduceDisconnect(s *State, act RemoveConnection) (*State, bool) {
	kept := slices.DeleteFunc(slices.Clone(s.Connections), func(c Connection) bool {
		return c.SourceNodeID == act.SourceNodeID && c.TargetNodeID == act.TargetNodeID
	})
	if len(kept) == len(s.Connections) {
		return s, false
	}
	next := derive(s)
	next.Connections = kept
	return next, true
}

func reduceRemoveNode(s *State, act RemoveNode) (*State, bool) {
	id := act.NodeID
	_, hasCfg := s.Configurations[id]
	_, hasResult := s.TestResults[id]
	_, hasErrors := s.ValidationErrors[id]
	touches := func(c Connection) bool { return c.SourceNodeID == id || c.TargetNodeID == id }
	hasEdges := slices.ContainsFunc(s.Connections, touches)
	if !hasCfg && !hasResult && !hasErrors && !hasEdges {
		return s, false
	}

	next := derive(s)
	if hasCfg {
		next.Configurations = maps.Clone(s.Configurations)
		delete(next.Configurations, id)
	}
	if hasResult {
		next.TestResults = maps.Clone(s.TestResults)
		delete(next.TestResults, id)
	}
	if hasErrors {
		next.ValidationErrors = maps.Clone(s.ValidationErrors)
		delete(next.ValidationErrors, id)
	}
	if hasEdges {
		next.Connections = slices.DeleteFunc(slices.Clone(s.Connections), touches)
	}
	return next, true
}

// Reachable reports whether to can be reached from from by following edges forward.
// A node always reaches itself.
func Reachable(s *State, from, to string) bool {
	if from == to {
		return true
	}
	if s == nil {
		return false
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.Connections {
			if c.SourceNodeID != cur || seen[c.TargetNodeID] {
				continue
			}
			if c.TargetNodeID == to {
				return true
			}
			seen[c.TargetNodeID] = true
			queue = append(queue, c.TargetNodeID)
		}
	}
	return false
}
