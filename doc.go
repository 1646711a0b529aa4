// Package limsclient is a Go client for the LIMS REST backend. It owns the
// full client-side authentication lifecycle — login, credential persistence,
// transparent token refresh on 401, periodic session validity checks, forced
// logout — and exposes typed access to the user, role, permission, and
// audit-log administration surface.
//
// The package is designed for concurrent callers: Client methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
// At most one token refresh is ever in flight per Client; concurrent requests
// that hit a 401 while a refresh is running are parked in FIFO order and
// re-dispatched exactly once with the fresh access token.
//
// # Architecture boundaries
//
// limsclient is the public surface. It exposes [Client], [Builder], [Config],
// and value types (User, TokenPair, AuditLogEntry, etc.). Token inspection
// lives in the token subpackage, credential persistence behind
// [credential.Store], and access decisions in the permission subpackage.
//
// # What this package must NOT do
//
//   - Verify token signatures. Client-side decoding is advisory only; the
//     backend is the sole authority for rejecting invalid or forged tokens.
//   - Issue more than one concurrent refresh call per Client.
//   - Surface raw backend error bodies for authentication failures — callers
//     see [ErrSessionExpired] and nothing else.
//
// # Failure contract
//
// A single 401 on a non-auth route is recovered internally and never reaches
// calling code. An absent or expired refresh token, or any refresh-call
// failure, purges stored credentials, requests navigation to the login path,
// and fails every parked request with [ErrSessionExpired].
package limsclient
