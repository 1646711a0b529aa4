package internaldefs

import (
	limsclient "github.com/srclims/limsclient"
)

// CounterDef defines a public type used by limsclient APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   limsclient.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by limsclient APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   limsclient.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session client.
var CounterDefs = []CounterDef{
	{ID: limsclient.MetricLoginSuccess, Name: "limsclient_login_success_total", Help: "Successful login attempts."},
	{ID: limsclient.MetricLoginFailure, Name: "limsclient_login_failure_total", Help: "Failed login attempts."},
	{ID: limsclient.MetricLogout, Name: "limsclient_logout_total", Help: "Explicit logout operations."},
	{ID: limsclient.MetricForcedLogout, Name: "limsclient_forced_logout_total", Help: "Forced logouts after unrecoverable session failures."},
	{ID: limsclient.MetricSessionRestored, Name: "limsclient_session_restored_total", Help: "Sessions restored from stored credentials without network calls."},
	{ID: limsclient.MetricRefreshSuccess, Name: "limsclient_refresh_success_total", Help: "Successful token refresh operations."},
	{ID: limsclient.MetricRefreshFailure, Name: "limsclient_refresh_failure_total", Help: "Failed token refresh operations."},
	{ID: limsclient.MetricRefreshParked, Name: "limsclient_refresh_parked_total", Help: "Requests parked behind an in-flight refresh."},
	{ID: limsclient.MetricRequestRetried, Name: "limsclient_request_retried_total", Help: "Requests replayed once after a refresh."},
	{ID: limsclient.MetricSessionExpired, Name: "limsclient_session_expired_total", Help: "Sessions declared expired."},
	{ID: limsclient.MetricValidityCheck, Name: "limsclient_validity_check_total", Help: "Periodic validity checks performed."},
	{ID: limsclient.MetricPermissionDenied, Name: "limsclient_permission_denied_total", Help: "Operations denied by permission evaluation."},
	{ID: limsclient.MetricNavigationFallback, Name: "limsclient_navigation_fallback_total", Help: "Navigation requests served by the fallback."},
}

// HistogramDefs is an exported constant or variable used by the session client.
var HistogramDefs = []HistogramDef{
	{ID: limsclient.MetricRequestLatency, Name: "limsclient_request_latency_seconds", Help: "API request latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session client.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session client.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
