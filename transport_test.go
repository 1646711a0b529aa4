package limsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/srclims/limsclient/credential"
)

func TestRefreshExempt(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/auth/login", true},
		{"/auth/logout", true},
		{"/auth/refresh", true},
		{"/auth/login/sso", true},
		{"/auth/me", false},
		{"/auth/meetings", false},
		{"/users", false},
		{"/reports/auth/login", false},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := refreshExempt(tc.path); got != tc.want {
				t.Fatalf("refreshExempt(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

// refreshingBackend serves /data gated on a token generation and rotates
// the generation through /auth/refresh.
type refreshingBackend struct {
	gen          atomic.Int64
	refreshCalls atomic.Int64
	dataCalls    atomic.Int64
	refreshDelay time.Duration
	refreshFails bool
}

func (b *refreshingBackend) currentAccess() string {
	return fmt.Sprintf("tok-%d", b.gen.Load())
}

func (b *refreshingBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		b.refreshCalls.Add(1)
		if b.refreshFails {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "refresh token revoked"})
			return
		}
		gen := b.gen.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokens": map[string]string{
				"accessToken":  fmt.Sprintf("tok-%d", gen),
				"refreshToken": fmt.Sprintf("ref-%d", gen),
			},
		})
	})

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if bearer != b.currentAccess() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "ok"})
	})

	return mux
}

func seedStaleTokens(t *testing.T, c *Client) {
	t.Helper()
	// Access token from a generation the backend no longer accepts.
	pair := TokenPair{AccessToken: "tok-stale", RefreshToken: "ref-0"}
	if err := c.Store().SetTokens(context.Background(), pair); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}
}

func TestConcurrentUnauthorizedTriggersSingleRefresh(t *testing.T) {
	backend := &refreshingBackend{refreshDelay: 50 * time.Millisecond}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	seedStaleTokens(t, c)

	const concurrency = 16
	var wg sync.WaitGroup
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out struct {
				Value string `json:"value"`
			}
			errs[i] = c.get(context.Background(), "/data", nil, &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := backend.refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", got)
	}

	// Everyone was replayed against the rotated token afterwards.
	access, err := c.Store().AccessToken(context.Background())
	if err != nil {
		t.Fatalf("read access token: %v", err)
	}
	if access != "tok-1" {
		t.Fatalf("stored access = %q, want tok-1", access)
	}
	snapshot := c.MetricsSnapshot()
	if got := snapshot.Counters[MetricRefreshSuccess]; got != 1 {
		t.Fatalf("refresh success metric = %d, want 1", got)
	}
	// A goroutine scheduled after the rotation lands never sees a 401, so
	// the replay count is bounded by the concurrency, not equal to it.
	if got := snapshot.Counters[MetricRequestRetried]; got < 1 || got > concurrency {
		t.Fatalf("retried metric = %d, want between 1 and %d", got, concurrency)
	}
}

func TestRefreshFailureFailsAllParkedRequests(t *testing.T) {
	backend := &refreshingBackend{refreshDelay: 30 * time.Millisecond, refreshFails: true}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	nav := &recordingNavigator{}
	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithNavigator(nav).WithMetricsEnabled(true)
	})
	seedStaleTokens(t, c)

	const concurrency = 8
	var wg sync.WaitGroup
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.get(context.Background(), "/data", nil, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("request %d err = %v, want ErrSessionExpired", i, err)
		}
	}
	if got := backend.refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", got)
	}

	// Credentials must be purged and the host sent to the login view.
	access, _ := c.Store().AccessToken(context.Background())
	refresh, _ := c.Store().RefreshToken(context.Background())
	if access != "" || refresh != "" {
		t.Fatalf("expected credentials purged, got access=%q refresh=%q", access, refresh)
	}
	if c.State() != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", c.State())
	}
	calls := nav.calls()
	if len(calls) == 0 || calls[0] != "/login" {
		t.Fatalf("expected navigation to /login, got %v", calls)
	}
}

func TestRefreshTimeoutPurgesContextAwareStore(t *testing.T) {
	// The refresh call dies on its own deadline; the purge that follows must
	// still reach a store that honors context cancellation.
	backend := &refreshingBackend{refreshDelay: 500 * time.Millisecond}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := credential.NewRedisStore(rdb, "lims", "primary")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}

	cfg := defaultConfig()
	cfg.API.BaseURL = server.URL
	cfg.Refresh.Timeout = 50 * time.Millisecond

	nav := &recordingNavigator{}
	c, err := New().WithConfig(cfg).WithCredentialStore(store).WithNavigator(nav).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)

	pair := TokenPair{AccessToken: "tok-stale", RefreshToken: "ref-live"}
	if err := store.SetSession(context.Background(), pair, testUserJSON()); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if err := c.get(context.Background(), "/data", nil, nil); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	access, err := store.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("read access token: %v", err)
	}
	refresh, err := store.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("read refresh token: %v", err)
	}
	profile, err := store.Profile(context.Background())
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if access != "" || refresh != "" || profile != nil {
		t.Fatalf("expected credentials purged, got access=%q refresh=%q profile=%s", access, refresh, profile)
	}
	if c.State() != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", c.State())
	}
	calls := nav.calls()
	if len(calls) == 0 || calls[0] != "/login" {
		t.Fatalf("expected navigation to /login, got %v", calls)
	}
}

func TestUnauthorizedRetriesExactlyOnce(t *testing.T) {
	// /data rejects every bearer, so the single post-refresh replay must be
	// the end of the line.
	var dataCalls, refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokens": map[string]string{"accessToken": "tok-new", "refreshToken": "ref-new"},
		})
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	seedStaleTokens(t, c)

	err := c.get(context.Background(), "/data", nil, nil)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if got := dataCalls.Load(); got != 2 {
		t.Fatalf("data calls = %d, want 2 (original + one replay)", got)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
}

func TestAuthRoutesBypassRefreshInterception(t *testing.T) {
	var refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	seedStaleTokens(t, c)

	_, err := c.Login(context.Background(), Credentials{Username: "jdoe", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if got := refreshCalls.Load(); got != 0 {
		t.Fatalf("refresh calls = %d, want 0 for an exempt route", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotAccept string
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	if err := c.Store().SetTokens(context.Background(), TokenPair{AccessToken: "tok-a", RefreshToken: "ref-a"}); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	if err := c.get(ctx, "/data", nil, nil); err != nil {
		t.Fatalf("get: %v", err)
	}

	if gotAuth != "Bearer tok-a" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotRequestID != "req-123" {
		t.Fatalf("X-Request-ID = %q, want the context-supplied id", gotRequestID)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
}

func TestGeneratedRequestIDWhenContextHasNone(t *testing.T) {
	ids := make(map[string]struct{})
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get("X-Request-ID")] = struct{}{}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	for i := 0; i < 3; i++ {
		if err := c.get(context.Background(), "/data", nil, nil); err != nil {
			t.Fatalf("get: %v", err)
		}
	}

	if len(ids) != 3 {
		t.Fatalf("expected 3 distinct generated request ids, got %d", len(ids))
	}
	for id := range ids {
		if id == "" {
			t.Fatal("expected a generated request id, got empty")
		}
	}
}

func TestForbiddenResponseMapsToPermissionDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient permissions"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})

	err := c.get(context.Background(), "/users", nil, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "insufficient permissions" {
		t.Fatalf("expected envelope message preserved, got %v", err)
	}
	if got := c.MetricsSnapshot().Counters[MetricPermissionDenied]; got != 1 {
		t.Fatalf("permission denied metric = %d, want 1", got)
	}
}

func TestLocalPreGateSkipsNetworkWhenDenied(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	seedSession(t, c, time.Hour, 24*time.Hour) // lab_technician, no user_* permissions

	if _, err := c.CreateUser(context.Background(), UserInput{Username: "new"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if got := hits.Load(); got != 0 {
		t.Fatalf("backend hits = %d, want 0 when locally denied", got)
	}

	// An admin passes the local gate and reaches the backend.
	adminProfile := []byte(`{"id":"u-9","username":"root","role":"admin","permissions":[]}`)
	if err := c.Store().SetSession(context.Background(), TokenPair{AccessToken: "a", RefreshToken: "r"}, adminProfile); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := c.CreateUser(context.Background(), UserInput{Username: "new"}); err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("backend hits = %d, want 1 for allowed call", got)
	}
}
