package limsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/srclims/limsclient/credential"
)

func loginBackend(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil ||
			creds.Username != "jdoe" || creds.Password != "Secr3t!" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": json.RawMessage(testUserJSON()),
			"tokens": map[string]string{
				"accessToken":  "tok-1",
				"refreshToken": "ref-1",
			},
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLoginPersistsSessionAtomically(t *testing.T) {
	server := loginBackend(t, nil)
	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})

	ctx := context.Background()
	result, err := c.Login(ctx, Credentials{Username: "jdoe", Password: "Secr3t!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.User == nil || result.User.Username != "jdoe" {
		t.Fatalf("unexpected login result user: %+v", result.User)
	}
	if result.Tokens.AccessToken != "tok-1" || result.Tokens.RefreshToken != "ref-1" {
		t.Fatalf("unexpected tokens: %+v", result.Tokens)
	}

	if c.State() != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", c.State())
	}
	access, _ := c.Store().AccessToken(ctx)
	refresh, _ := c.Store().RefreshToken(ctx)
	if access != "tok-1" || refresh != "ref-1" {
		t.Fatalf("stored tokens = (%q, %q)", access, refresh)
	}
	user, err := c.CurrentUser(ctx)
	if err != nil || user == nil || user.ID != "u-1" {
		t.Fatalf("cached user = (%+v, %v)", user, err)
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("login success metric = %d, want 1", got)
	}
}

func TestLoginRejectionLeavesStoreUntouched(t *testing.T) {
	server := loginBackend(t, nil)
	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})

	ctx := context.Background()
	_, err := c.Login(ctx, Credentials{Username: "jdoe", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	access, _ := c.Store().AccessToken(ctx)
	if access != "" {
		t.Fatalf("expected nothing stored after rejection, got %q", access)
	}
	if c.State() != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", c.State())
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("login failure metric = %d, want 1", got)
	}
}

func TestLoginRejectsIncompleteResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		// Tokens without a user is not a usable session.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokens": map[string]string{"accessToken": "a", "refreshToken": "r"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	if _, err := c.Login(context.Background(), Credentials{Username: "jdoe", Password: "Secr3t!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestInitializeRestoresStoredSessionWithoutNetwork(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	seedSession(t, c, time.Hour, 24*time.Hour)

	active, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !active {
		t.Fatal("expected session restored")
	}
	if c.State() != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", c.State())
	}
	if got := hits.Load(); got != 0 {
		t.Fatalf("backend hits = %d, initialization must be offline", got)
	}
	if got := c.MetricsSnapshot().Counters[MetricSessionRestored]; got != 1 {
		t.Fatalf("session restored metric = %d, want 1", got)
	}
}

func TestInitializePurgesUnrecoverableSession(t *testing.T) {
	server := loginBackend(t, nil)
	c := buildTestClient(t, server.URL, nil)
	// Expired refresh token: recovery is impossible.
	seedSession(t, c, -time.Minute, -time.Minute)

	active, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if active {
		t.Fatal("expected unrecoverable session to be rejected")
	}

	access, _ := c.Store().AccessToken(context.Background())
	if access != "" {
		t.Fatal("expected stored credentials purged")
	}
	if c.State() != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", c.State())
	}
}

func TestInitializeRunsOnce(t *testing.T) {
	server := loginBackend(t, nil)
	c := buildTestClient(t, server.URL, nil)
	seedSession(t, c, time.Hour, 24*time.Hour)

	first, err := c.Initialize(context.Background())
	if err != nil || !first {
		t.Fatalf("first initialize = (%v, %v)", first, err)
	}

	// Clearing afterwards must not change the recorded outcome.
	if err := c.Store().Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	second, err := c.Initialize(context.Background())
	if err != nil || second != first {
		t.Fatalf("second initialize = (%v, %v), want first outcome", second, err)
	}
}

func TestLogoutIsBestEffortAndIdempotent(t *testing.T) {
	var revokeCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		revokeCalls.Add(1)
		// Backend revocation failing must not block local logout.
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	seedSession(t, c, time.Hour, 24*time.Hour)

	ctx := context.Background()
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := revokeCalls.Load(); got != 1 {
		t.Fatalf("revoke calls = %d, want 1", got)
	}
	access, _ := c.Store().AccessToken(ctx)
	if access != "" {
		t.Fatal("expected credentials purged despite backend failure")
	}
	if c.State() != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", c.State())
	}

	// Nothing stored: a second logout is a local no-op.
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if got := revokeCalls.Load(); got != 1 {
		t.Fatalf("revoke calls after second logout = %d, want still 1", got)
	}
}

func TestForceLogoutNavigatesToLogin(t *testing.T) {
	server := loginBackend(t, nil)
	nav := &recordingNavigator{}
	c := buildTestClient(t, server.URL, func(b *Builder) {
		b.WithNavigator(nav)
	})
	seedSession(t, c, time.Hour, 24*time.Hour)

	if err := c.ForceLogout(context.Background()); err != nil {
		t.Fatalf("force logout: %v", err)
	}

	calls := nav.calls()
	if len(calls) != 1 || calls[0] != "/login" {
		t.Fatalf("navigation calls = %v, want [/login]", calls)
	}
	nav.mu.Lock()
	replace := nav.opts[0].Replace
	nav.mu.Unlock()
	if !replace {
		t.Fatal("forced logout must replace the history entry")
	}
}

func TestCheckValidity(t *testing.T) {
	server := loginBackend(t, nil)

	t.Run("healthy session passes", func(t *testing.T) {
		c := buildTestClient(t, server.URL, nil)
		seedSession(t, c, time.Hour, 24*time.Hour)

		valid, err := c.CheckValidity(context.Background())
		if err != nil || !valid {
			t.Fatalf("CheckValidity = (%v, %v), want true", valid, err)
		}
	})

	t.Run("expired refresh forces logout with navigation", func(t *testing.T) {
		nav := &recordingNavigator{}
		c := buildTestClient(t, server.URL, func(b *Builder) {
			b.WithNavigator(nav)
		})
		seedSession(t, c, time.Hour, -time.Minute)

		valid, err := c.CheckValidity(context.Background())
		if err != nil || valid {
			t.Fatalf("CheckValidity = (%v, %v), want false", valid, err)
		}
		if access, _ := c.Store().AccessToken(context.Background()); access != "" {
			t.Fatal("expected credentials purged")
		}
		if calls := nav.calls(); len(calls) != 1 || calls[0] != "/login" {
			t.Fatalf("navigation calls = %v, want [/login]", calls)
		}
	})

	t.Run("empty store gets no navigation side effect", func(t *testing.T) {
		nav := &recordingNavigator{}
		c := buildTestClient(t, server.URL, func(b *Builder) {
			b.WithNavigator(nav)
		})

		valid, err := c.CheckValidity(context.Background())
		if err != nil || valid {
			t.Fatalf("CheckValidity = (%v, %v), want false", valid, err)
		}
		if calls := nav.calls(); len(calls) != 0 {
			t.Fatalf("navigation calls = %v, want none for empty store", calls)
		}
	})
}

func TestValidityCheckerStopsAfterForcedLogout(t *testing.T) {
	server := loginBackend(t, nil)
	nav := &recordingNavigator{}
	c := buildTestClient(t, server.URL, func(b *Builder) {
		cfg := defaultConfig()
		cfg.API.BaseURL = server.URL
		cfg.Session.ValidityCheckInterval = 10 * time.Millisecond
		b.WithConfig(cfg).WithNavigator(nav)
	})
	seedSession(t, c, time.Hour, -time.Minute)

	stop := c.StartValidityChecker(context.Background())
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(nav.calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never forced logout")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if access, _ := c.Store().AccessToken(context.Background()); access != "" {
		t.Fatal("expected credentials purged by watchdog")
	}

	// One forced logout, then the checker exits; the call count must settle.
	settled := len(nav.calls())
	time.Sleep(50 * time.Millisecond)
	if got := len(nav.calls()); got != settled {
		t.Fatalf("navigation calls kept growing after teardown: %d -> %d", settled, got)
	}
}

func TestMeRefreshesCachedProfile(t *testing.T) {
	updated := `{"id":"u-1","username":"jdoe","email":"jdoe@example.test","firstName":"Janet","lastName":"Doe","role":"lab_manager","permissions":["sample_read","report_read"],"isActive":true}`
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":` + updated + `}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := buildTestClient(t, server.URL, nil)
	seedSession(t, c, time.Hour, 24*time.Hour)

	ctx := context.Background()
	user, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if user.Role != "lab_manager" || user.FirstName != "Janet" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	// The cached copy follows and the token pair survives.
	cached, err := c.CurrentUser(ctx)
	if err != nil || cached == nil || cached.Role != "lab_manager" {
		t.Fatalf("cached user = (%+v, %v)", cached, err)
	}
	refresh, _ := c.Store().RefreshToken(ctx)
	if refresh == "" {
		t.Fatal("expected refresh token untouched by profile update")
	}
}

// rotatingStore lands a token rotation right after a refresh-token read, the
// window where a stale pair write-back would lose the rotation.
type rotatingStore struct {
	credential.Store
	rotated TokenPair
	fired   atomic.Bool
}

func (s *rotatingStore) RefreshToken(ctx context.Context) (string, error) {
	tok, err := s.Store.RefreshToken(ctx)
	if err == nil && s.fired.CompareAndSwap(false, true) {
		if serr := s.Store.SetTokens(context.Background(), s.rotated); serr != nil {
			return "", serr
		}
	}
	return tok, nil
}

func TestMeSurvivesConcurrentTokenRotation(t *testing.T) {
	updated := `{"id":"u-1","username":"jdoe","role":"lab_manager","permissions":["sample_read"],"isActive":true}`
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":` + updated + `}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	inner := credential.NewMemoryStore()
	rotated := TokenPair{
		AccessToken:  testJWT(t, time.Hour),
		RefreshToken: testJWT(t, 48*time.Hour),
	}
	store := &rotatingStore{Store: inner, rotated: rotated}

	cfg := defaultConfig()
	cfg.API.BaseURL = server.URL
	c, err := New().WithConfig(cfg).WithCredentialStore(store).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)

	original := TokenPair{
		AccessToken:  testJWT(t, time.Hour),
		RefreshToken: testJWT(t, 24*time.Hour),
	}
	if err := inner.SetSession(context.Background(), original, testUserJSON()); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}

	profile, err := inner.Profile(context.Background())
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if !strings.Contains(string(profile), "lab_manager") {
		t.Fatalf("profile not updated: %s", profile)
	}

	// Whichever pair was written last must be the one that survives; a
	// rotation that landed mid-call must never be overwritten by the old one.
	wantRefresh := original.RefreshToken
	if store.fired.Load() {
		wantRefresh = rotated.RefreshToken
	}
	refresh, err := inner.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("read refresh token: %v", err)
	}
	if refresh != wantRefresh {
		t.Fatalf("stored refresh = %q, want %q (rotation lost)", refresh, wantRefresh)
	}
}

func TestIsAuthenticatedSurvivesExpiredAccess(t *testing.T) {
	server := loginBackend(t, nil)
	c := buildTestClient(t, server.URL, nil)
	seedSession(t, c, -time.Minute, 24*time.Hour)

	ok, err := c.IsAuthenticated(context.Background())
	if err != nil || !ok {
		t.Fatalf("IsAuthenticated = (%v, %v), want true while refresh lives", ok, err)
	}
}
