package limsclient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/srclims/limsclient/credential"
	"go.uber.org/zap"
)

// Builder defines a public type used by the LIMS client APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store      credential.Store
	httpClient *http.Client
	sink       EventSink
	logger     *zap.Logger
	navigator  Navigator
	fallback   Fallback

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore describes the withcredentialstore operation and its observable behavior.
//
// WithCredentialStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithNavigator pre-registers the navigation callback. Hosts whose router
// mounts later can instead Register on [Client.Bridge] once it exists.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithNavigationFallback sets the hard-redirect fallback invoked when no
// navigator is registered or the registered one fails.
func (b *Builder) WithNavigationFallback(fallback Fallback) *Builder {
	b.fallback = fallback
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithEventsEnabled describes the witheventsenabled operation and its observable behavior.
//
// WithEventsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventsEnabled(enabled bool) *Builder {
	b.config.Events.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation or dependency calls fail.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(b.config.API.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := b.store
	if store == nil {
		if b.config.Credential.FilePath != "" {
			store, err = credential.NewFileStore(b.config.Credential.FilePath)
			if err != nil {
				return nil, err
			}
		} else {
			store = credential.NewMemoryStore()
		}
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	sink := b.sink
	if sink == nil {
		sink = NewZapSink(logger)
	}

	c := &Client{
		config:  b.config,
		base:    base,
		store:   store,
		http:    httpClient,
		logger:  logger,
		metrics: NewMetrics(b.config.Metrics),
		events:  newEventDispatcher(b.config.Events, sink),
	}

	fallback := b.fallback
	if fallback == nil {
		fallback = func(path string) {
			logger.Warn("navigation fallback with no handler", zap.String("path", path))
		}
	}
	c.bridge = newBridge(fallback, c.observeFallback)
	if b.navigator != nil {
		c.bridge.Register(b.navigator)
	}

	b.built = true
	return c, nil
}
