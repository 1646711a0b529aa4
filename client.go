package limsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srclims/limsclient/credential"
	"go.uber.org/zap"
)

// Client defines a public type used by the LIMS client APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	config  Config
	base    *url.URL
	store   credential.Store
	http    *http.Client
	logger  *zap.Logger
	metrics *Metrics
	events  *eventDispatcher
	bridge  *Bridge

	// Refresh single-flight state. The refreshing flag plus the FIFO waiter
	// list guarantee at most one refresh call is ever outstanding per Client;
	// requests that 401 while the leader runs park on their own channel.
	refreshMu  sync.Mutex
	refreshing bool
	waiters    []chan refreshResult

	stateMu sync.Mutex
	state   SessionState

	initOnce   sync.Once
	initActive bool
	initErr    error

	watchMu     sync.Mutex
	watchCancel context.CancelFunc

	closed atomic.Bool
}

// Close stops the validity watchdog and drains the event dispatcher. The
// credential store is left as-is; Close is teardown, not logout.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closed.Store(true)
	c.stopValidityChecker()
	if c.events != nil {
		c.events.Close()
	}
}

// Bridge returns the navigation bridge so hosts can register their router
// after the view tree mounts and unregister on unmount.
func (c *Client) Bridge() *Bridge {
	if c == nil {
		return nil
	}
	return c.bridge
}

// Store exposes the credential store, mainly for embedding hosts that share
// it across client instances.
func (c *Client) Store() credential.Store {
	if c == nil {
		return nil
	}
	return c.store
}

// State reports the current session lifecycle state.
func (c *Client) State() SessionState {
	if c == nil {
		return StateUnauthenticated
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s SessionState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) EventsDropped() uint64 {
	if c == nil || c.events == nil {
		return 0
	}
	return c.events.Dropped()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) metricObserve(id MetricID, d time.Duration) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Observe(id, d)
}

func (c *Client) emit(ctx context.Context, eventType string, success bool, errMsg string, metadata map[string]string) {
	if c == nil || c.events == nil {
		return
	}
	event := SessionEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Success:   success,
		Error:     errMsg,
		Metadata:  metadata,
	}
	if user, err := c.cachedUser(ctx); err == nil && user != nil {
		event.UserID = user.ID
	}
	c.events.Emit(ctx, event)
}

func (c *Client) observeFallback(path string) {
	c.metricInc(MetricNavigationFallback)
	c.emit(context.Background(), EventNavigationFallback, true, "", map[string]string{"path": path})
}

// cachedUser decodes the stored profile without any network round trip.
func (c *Client) cachedUser(ctx context.Context) (*User, error) {
	profile, err := c.store.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if len(profile) == 0 {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal(profile, &user); err != nil {
		// Unreadable profile is equivalent to no profile; the session layer
		// forces re-authentication rather than surfacing decode noise.
		return nil, nil
	}
	return &user, nil
}
