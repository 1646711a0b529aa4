// Package token decodes and evaluates bearer tokens without network calls or
// signature verification. Decoding is advisory: it exists to time proactive
// refreshes and avoid pointless round trips, never to grant access — the
// backend remains authoritative for every token it is shown.
//
// Every function is pure given the wall clock. Malformed input is an
// expected, frequent condition (empty or missing token) and is reported as a
// value, never as an error or panic. On any ambiguity — unparseable token,
// missing exp claim — the package fails safe and reports the token expired.
package token
