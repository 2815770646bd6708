/*
Package ports defines the driven ports (interfaces) for the statemcp engine.

These interfaces decouple the core from external implementations: the
underlying artifact-serving backends the proxies delegate to, the session
state store, and the effect dispatch mechanism.

# Key Interfaces

  - ToolBackend / ResourceBackend / PromptBackend: the artifact framework's
    discovery/execution surface consumed by the state-aware proxies.
  - SessionStore: persistence of per-session automaton positions.
  - EffectDispatcher: pluggable execution of transition side-effects.
*/
package ports
