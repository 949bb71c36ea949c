/*
Package graph provides Store, the single owner of a nodeflow graph.

A Store holds the current domain.State and is the only way to change it.
Every change goes through Dispatch, which runs the pure domain reducer under a
mutex, persists the new snapshot through a ports.SnapshotStore, fires the
lifecycle hooks and notifies subscribers. Reads hand out the snapshot current
at call time and compute derived views through the resolver package.

When several processes share one graph, WithLocker makes every dispatch take a
distributed lock keyed by the graph ID and adopt any newer persisted revision
before applying the action.
*/
package graph
