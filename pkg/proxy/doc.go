// Package proxy interposes the automaton between clients and the artifact
// backends. Each proxy flavor answers two questions per session: which
// artifacts exist right now (listing filtered to the current state) and
// whether this invocation is allowed (gate, delegate, classify the outcome,
// commit the transition). Rejections use the domain sentinels so callers can
// distinguish an unavailable artifact from a concluded session.
package proxy
