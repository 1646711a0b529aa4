package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryBuffer is the window used by [IsExpiringSoon] when the caller
// passes a non-positive buffer.
const DefaultExpiryBuffer = 5 * time.Minute

var parser = jwt.NewParser()

// Claims is the decoded, unverified payload of a bearer token. Raw carries
// every claim as parsed; the named fields are the ones the client acts on.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       map[string]any
}

// HasExpiry reports whether the token carried an exp claim at all.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}

// Decode parses the three dot-separated segments of a bearer token and
// returns its payload without verifying the signature. The second return is
// false for anything unparseable; Decode never returns an error or panics.
func Decode(tokenStr string) (*Claims, bool) {
	if tokenStr == "" {
		return nil, false
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, mapClaims); err != nil {
		return nil, false
	}

	claims := &Claims{Raw: map[string]any(mapClaims)}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, true
}

// IsExpired reports whether the token must be treated as expired: decode
// failure, missing exp claim, or exp at or before the current instant all
// count. The client clock is trusted as-is; skew is the buffer's problem.
func IsExpired(tokenStr string) bool {
	claims, ok := Decode(tokenStr)
	if !ok || !claims.HasExpiry() {
		return true
	}
	return !claims.ExpiresAt.After(time.Now())
}

// IsExpiringSoon reports whether the token expires within buffer from now.
// A non-positive buffer means [DefaultExpiryBuffer]. Unparseable tokens and
// tokens without exp are always expiring soon.
func IsExpiringSoon(tokenStr string, buffer time.Duration) bool {
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	claims, ok := Decode(tokenStr)
	if !ok || !claims.HasExpiry() {
		return true
	}
	return !claims.ExpiresAt.After(time.Now().Add(buffer))
}

// TimeUntilExpiry returns the remaining lifetime of the token, floored at
// zero for expired or unparseable input.
func TimeUntilExpiry(tokenStr string) time.Duration {
	claims, ok := Decode(tokenStr)
	if !ok || !claims.HasExpiry() {
		return 0
	}
	remaining := time.Until(claims.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpiryDate returns the token's expiry instant. The second return is false
// when the token is unparseable or carries no exp claim.
func ExpiryDate(tokenStr string) (time.Time, bool) {
	claims, ok := Decode(tokenStr)
	if !ok || !claims.HasExpiry() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}
