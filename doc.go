/*
Package nodeflow is a node dataflow engine for wiring HTTP requests and data
transforms into a graph.

Every node is either a source, which performs an HTTP request, or a transform,
which filters or reshapes the results of the nodes connected to it. Each node
picks the parts of its last result it exposes downstream through output field
selections, written in a small path language (user.address.city, items[0].id,
items[].name).

# Architecture

The graph lives in a single state value changed only by dispatching actions
(pkg/domain). The reducer is pure and copy-on-write, so every snapshot handed
out is safe to read without locks. The graph store (pkg/graph) serialises
dispatches, persists snapshots through a ports.SnapshotStore and notifies
subscribers. The runner (pkg/runner) validates a node, resolves its inputs
from upstream results and records the outcome as a new result. Results carry
a run ID, so a slow run finishing after a newer one is discarded.

# Usage

	ctx := context.Background()
	eng, err := nodeflow.New(ctx, nodeflow.WithTimeout(10*time.Second))
	if err != nil {
		log.Fatal(err)
	}

	b := dsl.New()
	b.Source("users").Get("https://api.example.com/users").Select("id", "name")
	b.Transform("names").Lua("local out = {} for i, u in ipairs(data) do out[i] = u.name end return out").From("users")
	if err := b.Apply(ctx, eng); err != nil {
		log.Fatal(err)
	}

	result, err := eng.Run(ctx, "users")

Graphs can also be loaded from YAML, JSON or HCL workflow files
(pkg/definition) or imported from an OpenAPI document (pkg/adapters/openapi).

# Surfaces

The nodeflow command exposes the same engine as an HTTP API
(pkg/adapters/http), as an MCP server (pkg/adapters/mcp) and as one-shot
commands for applying, running and inspecting graphs.
*/
package nodeflow
