package limsclient

import (
	"time"

	"github.com/srclims/limsclient/credential"
	"github.com/srclims/limsclient/permission"
)

// TokenPair is the access/refresh token pair persisted by the credential
// store. Both tokens are always replaced together; see [credential.Store].
type TokenPair = credential.TokenPair

// SessionState represents the lifecycle state of the client session.
//
//	Docs: docs/session.md
type SessionState uint8

const (
	// StateUnauthenticated is an exported constant or variable used by the LIMS client.
	StateUnauthenticated SessionState = iota
	// StateInitializing is an exported constant or variable used by the LIMS client.
	StateInitializing
	// StateAuthenticated is an exported constant or variable used by the LIMS client.
	StateAuthenticated
	// StateLoggingOut is an exported constant or variable used by the LIMS client.
	StateLoggingOut
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	default:
		return "unauthenticated"
	}
}

// User is the cached profile of the authenticated user as returned by the
// backend. Permissions is the flat, already-merged effective permission name
// list — override resolution happens server-side.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	CustomRoleID  string     `json:"customRoleId,omitempty"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// FullName describes the fullname operation and its observable behavior.
//
// FullName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// Subject projects the profile into the view consumed by the permission
// package. Returns nil for a nil user, which every evaluator treats as an
// unconditional deny.
func (u *User) Subject() *permission.Subject {
	if u == nil {
		return nil
	}
	return &permission.Subject{
		Role:        u.Role,
		Permissions: u.Permissions,
	}
}

// Credentials is the login request payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned by [Client.Login] on success. The user profile and
// token pair it carries are already persisted atomically by the time the
// caller sees it.
type LoginResult struct {
	User   *User
	Tokens TokenPair
}

// Role is a backend role definition.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsSystem    bool     `json:"isSystem"`
	IsActive    bool     `json:"isActive"`
	Permissions []string `json:"permissions,omitempty"`
}

// Permission is a backend permission definition.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Resource    string `json:"resource,omitempty"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// OverrideKind discriminates permission override records.
type OverrideKind string

const (
	// OverrideGrant is an exported constant or variable used by the LIMS client.
	OverrideGrant OverrideKind = "grant"
	// OverrideDeny is an exported constant or variable used by the LIMS client.
	OverrideDeny OverrideKind = "deny"
)

// PermissionOverride is an administrator's explicit grant or denial of one
// permission to one user. An override past ExpiresAt is inert — the backend
// excludes it from effective permissions — but remains visible here so
// administrators can audit it.
type PermissionOverride struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	PermissionID string       `json:"permissionId"`
	Kind         OverrideKind `json:"type"`
	Reason       string       `json:"reason,omitempty"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Expired reports whether the override is past its expiry at the given
// instant. Overrides without an expiry never expire.
func (o *PermissionOverride) Expired(now time.Time) bool {
	if o == nil || o.ExpiresAt == nil {
		return false
	}
	return !o.ExpiresAt.After(now)
}

// EffectivePermissions is the server-resolved permission set for one user:
// role defaults plus active grants minus active denies, with the raw
// override records alongside for administrative display.
type EffectivePermissions struct {
	UserID      string               `json:"userId"`
	Role        string               `json:"role"`
	Permissions []string             `json:"permissions"`
	Overrides   []PermissionOverride `json:"overrides,omitempty"`
}

// AuditLogEntry is one row of the backend audit trail.
type AuditLogEntry struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	UserID       string            `json:"userId,omitempty"`
	Action       string            `json:"action"`
	Resource     string            `json:"resource,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	IPAddress    string            `json:"ipAddress,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// Pagination is the paging envelope shared by list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
