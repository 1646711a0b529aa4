package credential

import (
	"context"

	"github.com/srclims/limsclient/token"
)

// Storage key names shared by every backend. The file backend uses them as
// JSON field names, the Redis backend as hash field names.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// TokenPair defines a public type used by the LIMS client APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither token is set.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store is the persistence contract for session credentials. Absent values
// are empty strings (tokens) or nil (profile), never errors. The profile is
// stored as an opaque serialized record; the root package owns its schema.
type Store interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	Profile(ctx context.Context) ([]byte, error)

	// SetSession replaces all three values as one atomic unit. Used on login.
	SetSession(ctx context.Context, pair TokenPair, profile []byte) error
	// SetTokens replaces both tokens as one atomic unit, leaving the profile
	// untouched. Used after refresh; both tokens rotate together.
	SetTokens(ctx context.Context, pair TokenPair) error
	// SetProfile replaces the profile as one operation, leaving both tokens
	// untouched. Used when the backend profile is re-fetched; a token
	// rotation landing concurrently must survive it.
	SetProfile(ctx context.Context, profile []byte) error
	// Clear removes every stored value. Must be idempotent.
	Clear(ctx context.Context) error
}

// Status is the composite snapshot combining stored tokens with advisory
// token inspection. ShouldLogout is the authoritative signal that session
// recovery is impossible and the user must re-authenticate.
type Status struct {
	HasAccess          bool
	HasRefresh         bool
	AccessExpired      bool
	RefreshExpired     bool
	AccessExpiringSoon bool
	CanRefresh         bool
	ShouldLogout       bool
}

// ReadStatus evaluates the store's current tokens. The AccessExpiringSoon
// check uses [token.DefaultExpiryBuffer].
func ReadStatus(ctx context.Context, s Store) (Status, error) {
	access, err := s.AccessToken(ctx)
	if err != nil {
		return Status{}, err
	}
	refresh, err := s.RefreshToken(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		HasAccess:          access != "",
		HasRefresh:         refresh != "",
		AccessExpired:      access == "" || token.IsExpired(access),
		RefreshExpired:     refresh == "" || token.IsExpired(refresh),
		AccessExpiringSoon: access == "" || token.IsExpiringSoon(access, 0),
	}
	st.CanRefresh = st.HasRefresh && !st.RefreshExpired
	st.ShouldLogout = !st.CanRefresh

	return st, nil
}

// IsAuthenticated reports whether the store holds a usable session: an
// access token and a profile are present and recovery is still possible. A
// merely expired access token does not count against this — refresh is
// expected to restore it transparently.
func IsAuthenticated(ctx context.Context, s Store) (bool, error) {
	access, err := s.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	if access == "" {
		return false, nil
	}
	profile, err := s.Profile(ctx)
	if err != nil {
		return false, err
	}
	if len(profile) == 0 {
		return false, nil
	}

	st, err := ReadStatus(ctx, s)
	if err != nil {
		return false, err
	}
	return !st.ShouldLogout, nil
}
