package automaton

import (
	"fmt"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// Severity classifies a finding. Error findings fail the build; warnings are
// reported but do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FindingKind identifies the violated structural rule.
type FindingKind string

const (
	// FindingNoInitialState: no state carries the initial flag.
	FindingNoInitialState FindingKind = "no_initial_state"

	// FindingUnknownState: an edge destination references an undefined state.
	FindingUnknownState FindingKind = "unknown_state"

	// FindingNoReachableTerminal: no terminal edge is reachable from the
	// initial state; the automaton can never conclude.
	FindingNoReachableTerminal FindingKind = "no_reachable_terminal"

	// FindingUnreachableTerminal: a state bearing a terminal edge cannot be
	// reached from the initial state.
	FindingUnreachableTerminal FindingKind = "unreachable_terminal"

	// FindingUnreachableState: a state cannot be reached from the initial
	// state (warning; the model is kept intact).
	FindingUnreachableState FindingKind = "unreachable_state"

	// FindingUncoveredOutcome: a (state, artifact) binding leaves an outcome
	// without a transition. Success has no implicit default; Error resolves
	// to a self-loop materialized at Build.
	FindingUncoveredOutcome FindingKind = "uncovered_outcome"

	// FindingUnregisteredArtifact: the automaton references an artifact the
	// backend catalog does not know. Reported by CheckRegistrations.
	FindingUnregisteredArtifact FindingKind = "unregistered_artifact"
)

// Finding is one typed validation result.
type Finding struct {
	Kind     FindingKind
	Severity Severity
	StateID  string
	Artifact domain.ArtifactRef
	Detail   string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Validate runs the structural checks over a completed automaton: initial
// state existence, terminal reachability, and outcome coverage. All
// violations are collected; the check never short-circuits. Validate is pure
// and idempotent: identical graphs produce identical findings in discovery
// order.
func Validate(a *Automaton) []Finding {
	var findings []Finding

	// Initial-state existence. The builder rejects a second initial flag at
	// declaration time, so only absence can surface here.
	if a.initial == "" {
		findings = append(findings, Finding{
			Kind:     FindingNoInitialState,
			Severity: SeverityError,
			Detail:   "no state is marked initial",
		})
	}

	// Reference integrity: every edge destination must name a defined state.
	for _, e := range a.edgeList {
		if !a.StateExists(e.To) {
			findings = append(findings, Finding{
				Kind:     FindingUnknownState,
				Severity: SeverityError,
				StateID:  e.To,
				Artifact: e.Artifact,
				Detail: fmt.Sprintf("edge (%q, %s, %s) targets undefined state %q",
					e.From, e.Artifact, e.Outcome, e.To),
			})
		}
	}

	if a.initial != "" {
		findings = append(findings, checkReachability(a)...)
	}

	findings = append(findings, checkCoverage(a)...)
	return findings
}

// checkReachability traverses all edges (Success and Error alike, including
// materialized self-loops) from the initial state. Every state bearing a
// terminal edge must be reachable, and at least one terminal edge must be
// reachable overall.
func checkReachability(a *Automaton) []Finding {
	bySource := make(map[string][]Edge)
	for _, e := range a.edgeList {
		bySource[e.From] = append(bySource[e.From], e)
	}

	reachable := map[string]bool{a.initial: true}
	queue := []string{a.initial}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range bySource[id] {
			if a.StateExists(e.To) && !reachable[e.To] {
				reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	var findings []Finding
	terminalReachable := false
	flagged := make(map[string]bool)

	for _, e := range a.edgeList {
		if !e.Terminal {
			continue
		}
		if reachable[e.From] {
			terminalReachable = true
			continue
		}
		if flagged[e.From] {
			continue
		}
		flagged[e.From] = true
		findings = append(findings, Finding{
			Kind:     FindingUnreachableTerminal,
			Severity: SeverityError,
			StateID:  e.From,
			Detail:   fmt.Sprintf("terminal edge in state %q is unreachable from %q", e.From, a.initial),
		})
	}

	if !terminalReachable {
		findings = append(findings, Finding{
			Kind:     FindingNoReachableTerminal,
			Severity: SeverityError,
			Detail:   "no reachable terminal edge; the automaton can never conclude",
		})
	}

	for _, id := range a.stateOrder {
		if !reachable[id] {
			findings = append(findings, Finding{
				Kind:     FindingUnreachableState,
				Severity: SeverityWarning,
				StateID:  id,
				Detail:   fmt.Sprintf("state %q is unreachable from %q", id, a.initial),
			})
		}
	}
	return findings
}

// checkCoverage verifies that every (state, artifact) binding resolves both
// outcomes. Error normally resolves through the self-loop materialized at
// Build; its absence here means the automaton was assembled outside Build and
// is reported rather than silently assumed.
func checkCoverage(a *Automaton) []Finding {
	var findings []Finding
	for _, stateID := range a.stateOrder {
		for _, ref := range a.bindings[stateID] {
			if _, ok := a.EdgeFor(stateID, ref, domain.OutcomeSuccess); !ok {
				findings = append(findings, Finding{
					Kind:     FindingUncoveredOutcome,
					Severity: SeverityError,
					StateID:  stateID,
					Artifact: ref,
					Detail:   fmt.Sprintf("binding (%q, %s) declares no success edge", stateID, ref),
				})
			}
			if _, ok := a.EdgeFor(stateID, ref, domain.OutcomeError); !ok {
				findings = append(findings, Finding{
					Kind:     FindingUncoveredOutcome,
					Severity: SeverityError,
					StateID:  stateID,
					Artifact: ref,
					Detail:   fmt.Sprintf("binding (%q, %s) resolves no error edge", stateID, ref),
				})
			}
		}
	}
	return findings
}

// Catalog reports which artifacts the backend actually serves. Resources may
// be satisfied by a concrete registration or a template match.
type Catalog interface {
	HasTool(name string) bool
	HasResource(uri string) bool
	HasPrompt(name string) bool
}

// CheckRegistrations cross-checks every bound artifact against the backend
// catalog. Violations are fatal at startup: the automaton must not advertise
// artifacts the serving framework cannot deliver.
func CheckRegistrations(a *Automaton, c Catalog) []Finding {
	var findings []Finding
	for _, stateID := range a.stateOrder {
		for _, ref := range a.bindings[stateID] {
			var ok bool
			switch ref.Kind {
			case domain.KindTool:
				ok = c.HasTool(ref.ID)
			case domain.KindResource:
				ok = c.HasResource(ref.ID)
			case domain.KindPrompt:
				ok = c.HasPrompt(ref.ID)
			}
			if !ok {
				findings = append(findings, Finding{
					Kind:     FindingUnregisteredArtifact,
					Severity: SeverityError,
					StateID:  stateID,
					Artifact: ref,
					Detail:   fmt.Sprintf("%s bound in state %q is not registered", ref, stateID),
				})
			}
		}
	}
	return findings
}
