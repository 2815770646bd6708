/*
Package domain contains the core domain models shared across the statemcp engine.

It defines the artifact vocabulary (tools, resources, prompts), invocation
outcomes, transition results, effects, and the per-session value store. This
package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - ArtifactRef: Identifies one artifact (kind + identifier) in the automaton's input alphabet.
  - Outcome: The Success/Error result of a completed artifact invocation.
  - TransitionResult: The committed state change produced by one invocation.
  - Effect: A named side-effect callback scheduled on a committed transition.
  - Vars: Thread-safe key-value store scoped to one session.
*/
package domain
