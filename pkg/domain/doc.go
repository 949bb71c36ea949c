/*
Package domain contains the graph model of nodeflow and its reducer.

It defines node configurations, test results, validation errors, connections
and the State snapshot that holds them, plus the closed set of Actions that
transition one State into the next. The package is kept pure: no I/O, no
clocks, no persistence.

# Key Entities

  - NodeConfiguration: a source (HTTP request) or transform (data operation) node.
  - TestResult: the last run outcome of a node, ordered by RunID.
  - Connection: a directed edge between two nodes.
  - State: the immutable snapshot, advanced only by Reduce.
  - Action: a transition request, with a JSON envelope for transport.
*/
package domain
