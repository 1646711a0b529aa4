package limsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/srclims/limsclient/credential"
	"go.uber.org/zap"
)

type loginResponse struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	User *User `json:"user"`
}

// Initialize restores the session from the credential store at process
// start. No network call is made: a stored, still-recoverable session is
// trusted immediately so a reload never forces re-login, and an
// unrecoverable one (refresh token absent or expired) is purged on the spot.
// Initialize runs at most once per Client; later calls return the first
// outcome.
func (c *Client) Initialize(ctx context.Context) (bool, error) {
	if c == nil {
		return false, ErrClientNotReady
	}
	c.initOnce.Do(func() {
		c.setState(StateInitializing)
		c.initActive, c.initErr = c.initialize(ctx)
		if c.initActive {
			c.setState(StateAuthenticated)
		} else {
			c.setState(StateUnauthenticated)
		}
	})
	return c.initActive, c.initErr
}

func (c *Client) initialize(ctx context.Context) (bool, error) {
	status, err := credential.ReadStatus(ctx, c.store)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	if status.ShouldLogout {
		if err := c.store.Clear(ctx); err != nil {
			return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
		}
		return false, nil
	}

	user, err := c.cachedUser(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if user == nil {
		return false, nil
	}

	ok, err := credential.IsAuthenticated(ctx, c.store)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if !ok {
		return false, nil
	}

	c.metricInc(MetricSessionRestored)
	c.emit(ctx, EventSessionRestored, true, "", nil)
	return true, nil
}

// Login authenticates against the backend and, on success, persists the
// token pair and user profile as one atomic write before returning. On
// failure nothing stored changes: bad credentials surface as
// [ErrInvalidCredentials], everything else as the transport error.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}

	var resp loginResponse
	err := c.post(ctx, "/auth/login", creds, &resp)
	if err != nil {
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, EventLoginFailed, false, err.Error(), map[string]string{"username": creds.Username})

		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}

	if resp.User == nil || resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		c.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: login response missing user or tokens", ErrInvalidCredentials)
	}

	profile, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if err := c.store.SetSession(ctx, resp.Tokens, profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	c.setState(StateAuthenticated)
	c.metricInc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, true, "", map[string]string{"username": creds.Username})

	return &LoginResult{User: resp.User, Tokens: resp.Tokens}, nil
}

// Logout revokes the refresh token with the backend on a best-effort basis
// and then unconditionally purges local credentials. A failed revocation is
// logged, never surfaced — logout always succeeds locally, and calling it
// again with nothing stored is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}

	c.setState(StateLoggingOut)
	c.stopValidityChecker()

	refresh, err := c.store.RefreshToken(ctx)
	if err != nil {
		c.logger.Warn("logout: reading refresh token failed", zap.Error(err))
		refresh = ""
	}
	if refresh != "" {
		if err := c.post(ctx, "/auth/logout", logoutRequest{RefreshToken: refresh}, nil); err != nil {
			c.logger.Warn("logout: backend revocation failed", zap.Error(err))
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		c.setState(StateUnauthenticated)
		return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	c.setState(StateUnauthenticated)
	c.metricInc(MetricLogout)
	c.emit(ctx, EventLogout, true, "", nil)
	return nil
}

// ForceLogout purges credentials without the backend call and sends the host
// to the login view. Used when a validity check finds the session
// unrecoverable; also available to embedding hosts.
func (c *Client) ForceLogout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	return c.forceLogoutInternal(ctx, true)
}

func (c *Client) forceLogoutInternal(ctx context.Context, navigate bool) error {
	c.stopValidityChecker()

	err := c.store.Clear(ctx)
	c.setState(StateUnauthenticated)
	c.metricInc(MetricForcedLogout)
	c.emit(ctx, EventForcedLogout, err == nil, "", nil)

	if navigate {
		c.bridge.Request(c.config.Session.LoginPath, NavigateOptions{Replace: true})
	}

	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	return nil
}

// CheckValidity verifies the session is still recoverable and forces logout
// when it is not. Safe to call at any time; the watchdog calls it on its
// interval, and hosts may call it reactively around sensitive actions.
func (c *Client) CheckValidity(ctx context.Context) (bool, error) {
	if c == nil {
		return false, ErrClientNotReady
	}
	c.metricInc(MetricValidityCheck)

	status, err := credential.ReadStatus(ctx, c.store)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if !status.ShouldLogout {
		return true, nil
	}

	// Only an established session is worth tearing down; an empty store is
	// already logged out and gets no navigation side effect.
	if !status.HasAccess && !status.HasRefresh {
		return false, nil
	}

	if err := c.forceLogoutInternal(ctx, true); err != nil {
		return false, err
	}
	return false, nil
}

// StartValidityChecker launches the periodic watchdog that catches refresh
// expiry while the application is idle. It replaces any checker already
// running. The returned stop function is idempotent; the checker also stops
// when ctx is cancelled, when the session is torn down, or on Close.
func (c *Client) StartValidityChecker(ctx context.Context) (stop func()) {
	if c == nil {
		return func() {}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	c.watchMu.Lock()
	if c.watchCancel != nil {
		c.watchCancel()
	}
	c.watchCancel = cancel
	c.watchMu.Unlock()

	go func() {
		ticker := time.NewTicker(c.config.Session.ValidityCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.closed.Load() {
					return
				}
				valid, err := c.CheckValidity(ctx)
				if err != nil {
					c.logger.Warn("validity check failed", zap.Error(err))
					continue
				}
				if !valid {
					return
				}
			}
		}
	}()

	return cancel
}

func (c *Client) stopValidityChecker() {
	c.watchMu.Lock()
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}
	c.watchMu.Unlock()
}

// IsAuthenticated reports whether the stored session is currently usable. A
// merely expired access token still counts as authenticated while the
// refresh token can recover it.
func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	if c == nil {
		return false, ErrClientNotReady
	}
	ok, err := credential.IsAuthenticated(ctx, c.store)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	return ok, nil
}

// CurrentUser returns the cached profile without a network round trip. Nil
// with a nil error means no user is stored.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	return c.cachedUser(ctx)
}

// Me fetches the authoritative profile from the backend and refreshes the
// cached copy, leaving the token pair untouched.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}

	var resp meResponse
	if err := c.get(ctx, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "profile response missing user"}
	}

	profile, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	// Profile-only write: a token rotation landing while this call was in
	// flight must not be clobbered by writing a stale pair back.
	if err := c.store.SetProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	return resp.User, nil
}
