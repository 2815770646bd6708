// Package statemcp adds deterministic, protocol-level access control to an
// MCP server. A finite automaton declares which tools, resources and prompts
// each workflow state exposes; every client session walks the graph, and the
// invocation outcomes (success or error) drive the transitions. Artifacts
// outside the session's current state are neither listed nor callable, and a
// terminal transition concludes the session for good.
//
// The package is the facade: define the catalog and graph on a Server, Start
// it, then serve over stdio or SSE. The underlying pieces live in
// pkg/automaton (model, builder, validator), pkg/session (tracking and
// effects), pkg/proxy (the gates) and pkg/registry (the catalog).
package statemcp
