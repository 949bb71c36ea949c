// Package resolver derives read-only views of a graph snapshot: the upstream
// nodes of a node, the field selections they expose, and the projected inputs
// a node would receive if it ran now.
//
// Every function is pure. Results are recomputed on each call and never cached,
// so they always reflect the snapshot they are given.
package resolver

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/projection"
	"github.com/aretw0/nodeflow/pkg/value"
)

// UpstreamNodes returns the distinct sources of edges into nodeID, in the order
// their first edge was added. Edges whose source is gone are skipped.
func UpstreamNodes(s *domain.State, nodeID string) []domain.NodeConfiguration {
	if s == nil {
		return []domain.NodeConfiguration{}
	}
	out := []domain.NodeConfiguration{}
	seen := make(map[string]bool)
	for _, c := range s.Connections {
		if c.TargetNodeID != nodeID || seen[c.SourceNodeID] {
			continue
		}
		cfg, ok := s.Configurations[c.SourceNodeID]
		if !ok {
			continue
		}
		seen[c.SourceNodeID] = true
		out = append(out, cfg.Clone())
	}
	return out
}

// DownstreamNodes returns the distinct targets of edges out of nodeID, in edge order.
func DownstreamNodes(s *domain.State, nodeID string) []domain.NodeConfiguration {
	if s == nil {
		return []domain.NodeConfiguration{}
	}
	out := []domain.NodeConfiguration{}
	seen := make(map[string]bool)
	for _, c := range s.Connections {
		if c.SourceNodeID != nodeID || seen[c.TargetNodeID] {
			continue
		}
		cfg, ok := s.Configurations[c.TargetNodeID]
		if !ok {
			continue
		}
		seen[c.TargetNodeID] = true
		out = append(out, cfg.Clone())
	}
	return out
}

// AvailableOutputs maps every upstream node of nodeID to a copy of its output
// field selections. Nodes without selections map to an empty list.
func AvailableOutputs(s *domain.State, nodeID string) map[string][]string {
	out := make(map[string][]string)
	for _, up := range UpstreamNodes(s, nodeID) {
		sel := slices.Clone(up.OutputFieldSelections)
		if sel == nil {
			sel = []string{}
		}
		out[up.ID] = sel
	}
	return out
}

// ResolvedInputs maps every upstream node of nodeID that has a successful
// result and at least one selection to its result projected by those selections.
func ResolvedInputs(s *domain.State, nodeID string) map[string]value.Value {
	out := make(map[string]value.Value)
	for _, up := range UpstreamNodes(s, nodeID) {
		if len(up.OutputFieldSelections) == 0 {
			continue
		}
		result, ok := s.TestResults[up.ID]
		if !ok || !result.Success {
			continue
		}
		out[up.ID] = projection.Project(result.Value, up.OutputFieldSelections)
	}
	return out
}

// WouldCycle reports whether adding an edge from src to dst would close a cycle.
func WouldCycle(s *domain.State, src, dst string) bool {
	return domain.Reachable(s, dst, src)
}

// Ancestors returns every node with a path into nodeID, sorted.
func Ancestors(s *domain.State, nodeID string) []string {
	if s == nil {
		return []string{}
	}
	seen := map[string]bool{}
	queue := []string{nodeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.Connections {
			if c.TargetNodeID != cur || seen[c.SourceNodeID] || c.SourceNodeID == nodeID {
				continue
			}
			if !s.HasNode(c.SourceNodeID) {
				continue
			}
			seen[c.SourceNodeID] = true
			queue = append(queue, c.SourceNodeID)
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TopologicalOrder returns every node so that each one comes after all of its
// upstream nodes. Ties are broken by node ID, so the order is deterministic.
func TopologicalOrder(s *domain.State) ([]string, error) {
	if s == nil {
		return []string{}, nil
	}
	return topoSort(s, s.NodeIDs())
}

// OrderFor returns nodeID and its ancestors in topological order, nodeID last.
func OrderFor(s *domain.State, nodeID string) ([]string, error) {
	if !s.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	ids := append(Ancestors(s, nodeID), nodeID)
	return topoSort(s, ids)
}

func topoSort(s *domain.State, ids []string) ([]string, error) {
	member := make(map[string]bool, len(ids))
	for _, id := range ids {
		member[id] = true
	}

	indegree := make(map[string]int, len(ids))
	edges := make(map[string][]string)
	seenEdge := make(map[[2]string]bool)
	for _, c := range s.Connections {
		if !member[c.SourceNodeID] || !member[c.TargetNodeID] {
			continue
		}
		key := [2]string{c.SourceNodeID, c.TargetNodeID}
		if seenEdge[key] {
			continue
		}
		seenEdge[key] = true
		edges[c.SourceNodeID] = append(edges[c.SourceNodeID], c.TargetNodeID)
		indegree[c.TargetNodeID]++
	}

	var ready []string
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range edges[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, domain.ErrCycle
	}
	return order, nil
}
