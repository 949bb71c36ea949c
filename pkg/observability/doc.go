/*
Package observability provides tools for monitoring running graphs.

Lifecycle hooks (see domain.LifecycleHooks) report dispatches, persistence
failures and node runs as they happen. The Aggregator merges the change
notifications of several graphs into one stream, so a single observer can
follow many of them.
*/
package observability
