package limsclient

import (
	"errors"
	"fmt"
)

var (
	// ErrClientNotReady is an exported constant or variable used by the LIMS client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrNotAuthenticated is an exported constant or variable used by the LIMS client.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is an exported constant or variable used by the LIMS client.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is the uniform terminal failure handed to every caller
	// whose request was parked or retried when a refresh cycle fails. Stored
	// credentials are already purged by the time callers observe it.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrInvalidRefreshResponse is an exported constant or variable used by the LIMS client.
	ErrInvalidRefreshResponse = errors.New("refresh response missing token pair")
	// ErrMissingRefreshToken is an exported constant or variable used by the LIMS client.
	ErrMissingRefreshToken = errors.New("no refresh token stored")
	// ErrPermissionDenied is an exported constant or variable used by the LIMS client.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCredentialStoreUnavailable is an exported constant or variable used by the LIMS client.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
)

// APIError carries a non-2xx backend response that is not handled internally
// by the refresh path. Status is the HTTP status code; Message is the
// backend's error field when the body was a JSON error envelope.
type APIError struct {
	Status  int
	Message string
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Is maps 401 responses to [ErrNotAuthenticated] and 403 responses to
// [ErrPermissionDenied] so callers can branch with errors.Is without
// unwrapping the concrete type.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Status == 401
	case ErrPermissionDenied:
		return e.Status == 403
	}
	return false
}
