// Command lims-smoke exercises the client against a throwaway in-process
// backend: it logs in, hammers an authenticated endpoint from many workers
// while the backend keeps expiring the access token, and reports how the
// refresh path held up. Useful as a quick concurrency soak without a real
// LIMS deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	limsclient "github.com/srclims/limsclient"
	"go.uber.org/zap"
)

const (
	smokeUsername = "smoke"
	smokePassword = "smoke-pass"
)

func main() {
	var (
		workers     = flag.Int("workers", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 10000, "total authenticated requests to issue")
		expireEvery = flag.Int("expire-every", 50, "invalidate the access token after this many requests")
		credFile    = flag.String("cred-file", "", "credential file path; empty uses an in-memory store")
	)
	flag.Parse()

	if *workers <= 0 || *ops <= 0 || *expireEvery <= 0 {
		fmt.Fprintln(os.Stderr, "workers, ops, and expire-every must be > 0")
		os.Exit(2)
	}

	backend := newFakeBackend(*expireEvery)
	server := httptest.NewServer(backend)
	defer server.Close()
	fmt.Printf("fake backend at %s\n", server.URL)

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := limsclient.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.API.BaseURL = server.URL
	cfg.Credential.FilePath = *credFile

	client, err := limsclient.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := client.Login(ctx, limsclient.Credentials{Username: smokeUsername, Password: smokePassword}); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	stats := runMePhase(ctx, client, *ops, *workers)

	if _, err := client.CheckValidity(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "validity check: %v\n", err)
	}
	if err := client.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logout: %v\n", err)
	}

	snapshot := client.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("me", stats)
	fmt.Printf("backend: refreshes=%d expired_generations=%d\n", backend.refreshes.Load(), backend.expirations.Load())
	fmt.Printf("client:  refresh_success=%d refresh_parked=%d retried=%d forced_logout=%d events_dropped=%d\n",
		snapshot.Counters[limsclient.MetricRefreshSuccess],
		snapshot.Counters[limsclient.MetricRefreshParked],
		snapshot.Counters[limsclient.MetricRequestRetried],
		snapshot.Counters[limsclient.MetricForcedLogout],
		client.EventsDropped(),
	)

	if stats.failures > 0 {
		os.Exit(1)
	}
}

func runMePhase(ctx context.Context, client *limsclient.Client, ops, workers int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := client.Me(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// fakeBackend is a minimal stand-in for the LIMS API: one user, HS256
// tokens, and a generation counter. Access tokens carry the generation
// that minted them; every expireEvery authenticated requests the current
// generation is retired, so the next bearer with a stale generation gets
// a 401 and the client must refresh.
type fakeBackend struct {
	mux         *http.ServeMux
	secret      []byte
	generation  atomic.Int64
	requests    atomic.Int64
	refreshes   atomic.Int64
	expirations atomic.Int64
	expireEvery int
}

func newFakeBackend(expireEvery int) *fakeBackend {
	b := &fakeBackend{
		mux:         http.NewServeMux(),
		secret:      []byte("lims-smoke-secret"),
		expireEvery: expireEvery,
	}
	b.mux.HandleFunc("POST /auth/login", b.handleLogin)
	b.mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	b.mux.HandleFunc("POST /auth/logout", b.handleLogout)
	b.mux.HandleFunc("GET /auth/me", b.handleMe)
	return b
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *fakeBackend) mintTokens() map[string]string {
	gen := b.generation.Load()
	now := time.Now()
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-smoke",
		"gen": gen,
		"iat": now.Unix(),
		"exp": now.Add(30 * time.Minute).Unix(),
	})
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-smoke",
		"iat": now.Unix(),
		"exp": now.Add(24 * time.Hour).Unix(),
	})
	accessStr, _ := access.SignedString(b.secret)
	refreshStr, _ := refresh.SignedString(b.secret)
	return map[string]string{"accessToken": accessStr, "refreshToken": refreshStr}
}

func (b *fakeBackend) smokeUser() map[string]any {
	return map[string]any{
		"id":          "u-smoke",
		"username":    smokeUsername,
		"email":       "smoke@example.test",
		"firstName":   "Smoke",
		"lastName":    "Test",
		"role":        "lab_technician",
		"permissions": []string{"sample_read", "sample_create"},
		"isActive":    true,
	}
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil ||
		creds.Username != smokeUsername || creds.Password != smokePassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   b.smokeUser(),
		"tokens": b.mintTokens(),
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing refresh token"})
		return
	}
	if _, err := jwt.Parse(body.RefreshToken, func(*jwt.Token) (any, error) { return b.secret, nil }); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}
	b.refreshes.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{"tokens": b.mintTokens()})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (b *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return b.secret, nil })
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	gen, _ := claims["gen"].(float64)
	if int64(gen) != b.generation.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
		return
	}

	if b.requests.Add(1)%int64(b.expireEvery) == 0 {
		b.generation.Add(1)
		b.expirations.Add(1)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": b.smokeUser()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
