// Package permission answers "can this subject do X" from the cached user
// profile alone: a role string plus the flat, server-merged permission name
// set. Decisions are deterministic — no clock, no randomness, no I/O — so
// the same subject and permission name always evaluate the same way.
//
// The role "admin" (any casing) bypasses every check. The sentinel name
// "audit_logs" is composite: it is satisfied by holding any of the three
// graded audit permissions (basic, security, system); see [Level].
//
// # Architecture boundaries
//
// This package is a pure in-memory decision layer. It gates UI actions and
// spares pointless round trips; the backend remains the authority and may
// still answer 403.
//
// # What this package must NOT do
//
//   - Access the network or any store.
//   - Import the limsclient root package, credential, or token.
//   - Resolve override expiry — the backend merges overrides before the
//     permission list ever reaches a subject.
package permission
