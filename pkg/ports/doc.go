/*
Package ports defines the driven ports (interfaces) of nodeflow.

These interfaces decouple the graph core from concrete infrastructure, so the
same store and runner work with any persistence backend or request transport.

# Key Interfaces

  - SnapshotStore: persists and loads whole graph snapshots.
  - NodeExecutor: runs a node against its resolved inputs.
  - DistributedLocker: serialises dispatches across replicas.
  - Graph: the dispatch and query surface of a graph store.
*/
package ports
