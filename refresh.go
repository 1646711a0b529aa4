package limsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type refreshResult struct {
	access string
	err    error
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Tokens TokenPair `json:"tokens"`
}

// awaitRefresh is called by dispatch when a request hits a 401. Exactly one
// caller becomes the refresh leader; everyone else parks on a channel in
// arrival order and is released with the leader's outcome. The leader clears
// the refreshing flag before waking anyone, so a later 401 can always start
// a fresh cycle.
func (c *Client) awaitRefresh(ctx context.Context) refreshResult {
	c.refreshMu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.refreshMu.Unlock()

		c.metricInc(MetricRefreshParked)

		select {
		case result := <-ch:
			return result
		case <-ctx.Done():
			return refreshResult{err: ctx.Err()}
		}
	}
	c.refreshing = true
	c.refreshMu.Unlock()

	result := c.runRefresh()

	c.refreshMu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.refreshMu.Unlock()

	// Waiter channels are buffered; release preserves FIFO arrival order
	// without blocking on any single consumer.
	for _, ch := range waiters {
		ch <- result
	}

	return result
}

// runRefresh executes one refresh cycle as the leader. The call runs under
// its own bounded timeout, detached from the triggering request's context,
// so one caller's cancellation cannot strand the whole waiter queue.
func (c *Client) runRefresh() refreshResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Refresh.Timeout)
	defer cancel()

	pair, err := c.performRefresh(ctx)
	if err != nil {
		c.metricInc(MetricRefreshFailure)
		c.emit(ctx, EventRefreshFailed, false, err.Error(), nil)
		c.expireSession(ctx)
		return refreshResult{err: fmt.Errorf("%w: %v", ErrSessionExpired, err)}
	}

	c.metricInc(MetricRefreshSuccess)
	c.emit(ctx, EventRefreshSuccess, true, "", nil)
	return refreshResult{access: pair.AccessToken}
}

// performRefresh issues the refresh call through a bypass path that is not
// subject to 401 interception, preventing recursion.
func (c *Client) performRefresh(ctx context.Context) (TokenPair, error) {
	refresh, err := c.store.RefreshToken(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if refresh == "" {
		return TokenPair{}, ErrMissingRefreshToken
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/refresh", nil, refreshRequest{RefreshToken: refresh})
	if err != nil {
		return TokenPair{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return TokenPair{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return TokenPair{}, ErrInvalidRefreshResponse
	}
	// Refresh tokens rotate; a response missing either half of the pair is
	// as terminal as a network failure.
	if payload.Tokens.AccessToken == "" || payload.Tokens.RefreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshResponse
	}

	if err := c.store.SetTokens(ctx, payload.Tokens); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	return payload.Tokens, nil
}

// expireSession is the terminal path for an unrecoverable session: purge
// everything, flip to unauthenticated, and send the host to the login view.
// The triggering context may already be past its deadline — a refresh
// timeout is one of the ways we get here — so the purge runs detached from
// its cancellation; a context-aware store must still see the Clear.
func (c *Client) expireSession(ctx context.Context) {
	c.metricInc(MetricSessionExpired)
	if err := c.forceLogoutInternal(context.WithoutCancel(ctx), true); err != nil {
		c.logger.Warn("session expiry purge failed", zap.Error(err))
	}
}
