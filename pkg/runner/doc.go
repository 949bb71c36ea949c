/*
Package runner executes graph nodes and feeds their results back into the graph.

A run validates the node, resolves its inputs from upstream results, hands the
node to the executor registered for its kind and dispatches the outcome as a
test result tagged with a fresh run ID. Older runs that complete late are
ignored by the graph, so repeated clicks on "run" never regress a result.

# Key Components

  - Runner: runs one node, a node and its ancestors, or the whole graph.
  - Interceptor: a policy hook that may refuse a run before any request is made.
  - SanitizeMessage: cleans remote text before it is stored in a result.

# Usage

	r := runner.New(store,
		runner.WithExecutor(domain.NodeKindSource, request.New()),
		runner.WithExecutor(domain.NodeKindTransform, transform.New()),
		runner.WithTimeout(30*time.Second),
	)

	results, err := r.RunPipeline(ctx, "filtered-users")
*/
package runner
