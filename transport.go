package limsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Auth routes exempt from 401 refresh interception. The match is an exact
// route prefix, not a substring, so an unrelated endpoint that merely
// contains "/auth/" in its path is still refresh-protected. /auth/me is
// deliberately absent: a stale token on the profile endpoint benefits from
// refresh like any other resource call.
var refreshExemptRoutes = []string{
	"/auth/login",
	"/auth/logout",
	"/auth/refresh",
}

func refreshExempt(path string) bool {
	for _, route := range refreshExemptRoutes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodDelete, path, query, body, out)
}

// do is the single dispatch entry point for every backend call except the
// refresh bypass in refresh.go.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil || c.http == nil {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.config.API.RequestTimeout > 0 {
		if _, has := ctx.Deadline(); !has {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.API.RequestTimeout)
			defer cancel()
		}
	}

	start := time.Now()
	err := c.dispatch(ctx, method, path, query, body, out, false)
	c.metricObserve(MetricRequestLatency, time.Since(start))
	return err
}

func (c *Client) dispatch(ctx context.Context, method, path string, query url.Values, body, out any, retried bool) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !retried && !refreshExempt(path) {
		io.Copy(io.Discard, resp.Body)

		result := c.awaitRefresh(ctx)
		if result.err != nil {
			return result.err
		}

		c.metricInc(MetricRequestRetried)
		return c.dispatch(ctx, method, path, query, body, out, true)
	}

	return c.decodeResponse(resp, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestIDFromContext(ctx))
	if c.config.API.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.API.UserAgent)
	}

	// Bearer attachment is advisory like everything client-side: attach
	// whatever access token is stored, expired or not, and let the 401 path
	// sort it out.
	if access, err := c.store.AccessToken(ctx); err == nil && access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	return req, nil
}

func (c *Client) decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var envelope errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope); err == nil {
		if envelope.Error != "" {
			apiErr.Message = envelope.Error
		} else {
			apiErr.Message = envelope.Message
		}
	}

	if resp.StatusCode == http.StatusForbidden {
		c.metricInc(MetricPermissionDenied)
		c.emit(resp.Request.Context(), EventPermissionDenied, false, apiErr.Message, map[string]string{
			"path": resp.Request.URL.Path,
		})
	}

	return apiErr
}

func requestIDFromContext(ctx context.Context) string {
	if id := contextRequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
