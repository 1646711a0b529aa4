package limsclient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config defines a public type used by the LIMS client APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API        APIConfig
	Refresh    RefreshConfig
	Session    SessionConfig
	Credential CredentialConfig
	Events     EventConfig
	Metrics    MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig defines a public type used by the LIMS client APIs.
//
// APIConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type APIConfig struct {
	// BaseURL is the backend origin including any path prefix,
	// e.g. "https://lims-api.example.test/api".
	BaseURL string
	// RequestTimeout bounds every non-refresh request issued by the client.
	RequestTimeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by the LIMS client APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// Timeout bounds the refresh round trip so a stuck refresh can never
	// park the waiter queue indefinitely.
	Timeout time.Duration
	// ExpiryBuffer is the window used when evaluating "expiring soon".
	ExpiryBuffer time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by the LIMS client APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// ValidityCheckInterval is the watchdog period while authenticated.
	ValidityCheckInterval time.Duration
	// LoginPath is the navigation target after a forced logout.
	LoginPath string
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig defines a public type used by the LIMS client APIs.
//
// CredentialConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CredentialConfig struct {
	// RedisPrefix namespaces keys when the Redis-backed store is used.
	RedisPrefix string
	// FilePath locates the on-disk document when the file-backed store is
	// used and none was constructed explicitly.
	FilePath string
}

/*
====================================
EVENT CONFIG
====================================
*/

// EventConfig defines a public type used by the LIMS client APIs.
//
// EventConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by the LIMS client APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultBaseURL is an exported constant or variable used by the LIMS client.
const DefaultBaseURL = "https://lims-api.example.test/api"

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			RequestTimeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Timeout:      10 * time.Second,
			ExpiryBuffer: 5 * time.Minute,
		},
		Session: SessionConfig{
			ValidityCheckInterval: 60 * time.Second,
			LoginPath:             "/login",
		},
		Credential: CredentialConfig{
			RedisPrefix: "lims",
		},
		Events: EventConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func validateConfig(cfg Config) error {
	base := strings.TrimSpace(cfg.API.BaseURL)
	if base == "" {
		return errors.New("API.BaseURL must not be empty")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("API.BaseURL must be an absolute URL")
	}
	if cfg.API.RequestTimeout < 0 {
		return errors.New("API.RequestTimeout must not be negative")
	}
	if cfg.Refresh.Timeout <= 0 {
		return errors.New("Refresh.Timeout must be positive")
	}
	if cfg.Refresh.ExpiryBuffer < 0 {
		return errors.New("Refresh.ExpiryBuffer must not be negative")
	}
	if cfg.Session.ValidityCheckInterval <= 0 {
		return errors.New("Session.ValidityCheckInterval must be positive")
	}
	if cfg.Session.LoginPath == "" {
		return errors.New("Session.LoginPath must not be empty")
	}
	if cfg.Events.Enabled && cfg.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be positive when events are enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone keeps Builder callers from
	// mutating a Config after handing it over.
	return cfg
}

// ConfigFromEnv builds a Config from LIMS_* environment variables layered
// over the defaults: LIMS_API_URL, LIMS_REQUEST_TIMEOUT, LIMS_REFRESH_TIMEOUT,
// LIMS_EXPIRY_BUFFER, LIMS_VALIDITY_CHECK_INTERVAL, LIMS_LOGIN_PATH,
// LIMS_CREDENTIAL_FILE, LIMS_REDIS_PREFIX, LIMS_EVENTS_ENABLED,
// LIMS_METRICS_ENABLED. Unset variables keep their defaults.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetEnvPrefix("LIMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("api_url", cfg.API.BaseURL)
	v.SetDefault("request_timeout", cfg.API.RequestTimeout)
	v.SetDefault("refresh_timeout", cfg.Refresh.Timeout)
	v.SetDefault("expiry_buffer", cfg.Refresh.ExpiryBuffer)
	v.SetDefault("validity_check_interval", cfg.Session.ValidityCheckInterval)
	v.SetDefault("login_path", cfg.Session.LoginPath)
	v.SetDefault("credential_file", cfg.Credential.FilePath)
	v.SetDefault("redis_prefix", cfg.Credential.RedisPrefix)
	v.SetDefault("events_enabled", cfg.Events.Enabled)
	v.SetDefault("metrics_enabled", cfg.Metrics.Enabled)

	cfg.API.BaseURL = v.GetString("api_url")
	cfg.API.RequestTimeout = v.GetDuration("request_timeout")
	cfg.Refresh.Timeout = v.GetDuration("refresh_timeout")
	cfg.Refresh.ExpiryBuffer = v.GetDuration("expiry_buffer")
	cfg.Session.ValidityCheckInterval = v.GetDuration("validity_check_interval")
	cfg.Session.LoginPath = v.GetString("login_path")
	cfg.Credential.FilePath = v.GetString("credential_file")
	cfg.Credential.RedisPrefix = v.GetString("redis_prefix")
	cfg.Events.Enabled = v.GetBool("events_enabled")
	cfg.Metrics.Enabled = v.GetBool("metrics_enabled")

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
