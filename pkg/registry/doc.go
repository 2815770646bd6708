// Package registry implements the in-process artifact catalog: tools,
// concrete resources, resource templates and prompts, each kept in
// registration order. The catalog is the backend the state-aware proxies
// delegate to, and the authority the automaton's registration cross-check
// runs against at startup.
package registry
