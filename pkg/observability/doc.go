/*
Package observability provides Prometheus instrumentation for the engine:
transition and rejection counters, effect failure counts, and an
active-session gauge. All recording helpers are nil-safe so instrumentation
stays optional.
*/
package observability
