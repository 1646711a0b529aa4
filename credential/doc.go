// Package credential persists the client's session state: the access token,
// the refresh token, and the serialized user profile. It is initialized from
// durable storage at process start and torn down explicitly on logout.
//
// The invariant every backend must honor is pair atomicity: a reader must
// never observe a new access token next to a stale refresh token or vice
// versa. SetSession and SetTokens are therefore single backend operations —
// one locked map update, one file rename, one Redis HSET.
//
// Three backends ship with the package: [MemoryStore] for tests and
// ephemeral processes, [FileStore] for a single durable on-disk document,
// and [RedisStore] for deployments that keep session state server-adjacent
// (kiosk fleets, backend-for-frontend processes).
package credential
