package domain

import (
	"maps"
	"reflect"
	"slices"
)

// StateDiff summarises what changed between two snapshots.
// It is serialised to JSON for subscribers that refresh only what they show.
type StateDiff struct {
	Revision uint64 `json:"revision"`

	// Nodes whose configuration was added or modified.
	ChangedNodes []string `json:"changedNodes,omitempty"`

	// Nodes that no longer exist.
	RemovedNodes []string `json:"removedNodes,omitempty"`

	// Nodes whose test result was set or dropped.
	Results []string `json:"results,omitempty"`

	// Nodes whose validation error list changed.
	ValidationErrors []string `json:"validationErrors,omitempty"`

	Connections bool `json:"connections,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// A nil oldState is treated as an empty graph.
func Diff(oldState, newState *State) *StateDiff {
	if oldState == nil {
		oldState = NewState()
	}
	if newState == nil {
		newState = NewState()
	}

	diff := &StateDiff{Revision: newState.Revision}

	for _, id := range slices.Sorted(maps.Keys(newState.Configurations)) {
		old, ok := oldState.Configurations[id]
		if !ok || !reflect.DeepEqual(old, newState.Configurations[id]) {
			diff.ChangedNodes = append(diff.ChangedNodes, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(oldState.Configurations)) {
		if _, ok := newState.Configurations[id]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	diff.Results = changedKeys(oldState.TestResults, newState.TestResults)
	diff.ValidationErrors = changedKeys(oldState.ValidationErrors, newState.ValidationErrors)
	diff.Connections = !slices.Equal(oldState.Connections, newState.Connections)

	return diff
}

func changedKeys[V any](old, new map[string]V) []string {
	var out []string
	for _, id := range slices.Sorted(maps.Keys(new)) {
		prev, ok := old[id]
		if !ok || !reflect.DeepEqual(prev, new[id]) {
			out = append(out, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(old)) {
		if _, ok := new[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.ChangedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.Results) == 0 &&
		len(d.ValidationErrors) == 0 &&
		!d.Connections
}
