// Package session tracks the automaton position of every connected client.
//
// A Tracker binds an automaton to a ports.SessionStore and serializes all
// moves per session. Transitions are atomic: the new position is persisted
// before any effect runs, and effect failures never roll a session back.
// Once a terminal edge fires the session is concluded and rejects every
// further invocation.
package session
