package permission

import "strings"

// AdminRole is the privileged role name, compared case-insensitively.
const AdminRole = "admin"

// Subject is the view of a user that access decisions consume: the role and
// the server-merged effective permission names. A nil subject denies
// everything.
type Subject struct {
	Role        string
	Permissions []string
}

// IsAdmin describes the isadmin operation and its observable behavior.
//
// IsAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Subject) IsAdmin() bool {
	return s != nil && strings.EqualFold(s.Role, AdminRole)
}

func (s *Subject) holds(name string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Has reports whether the subject satisfies the named permission. An empty
// name means no restriction was declared and is open to any non-nil subject.
// Admins satisfy everything; the audit sentinel is satisfied by any graded
// audit permission; anything else is a plain membership test.
func Has(s *Subject, name string) bool {
	if s == nil {
		return false
	}
	if name == "" {
		return true
	}
	if s.IsAdmin() {
		return true
	}
	if name == AuditSentinel {
		return HasAuditAccess(s)
	}
	return s.holds(name)
}

// HasAny reports whether the subject satisfies at least one of the names.
// An empty list declares no restriction.
func HasAny(s *Subject, names []string) bool {
	if s == nil {
		return false
	}
	if len(names) == 0 {
		return true
	}
	if s.IsAdmin() {
		return true
	}
	for _, name := range names {
		if name == AuditSentinel {
			if HasAuditAccess(s) {
				return true
			}
			continue
		}
		if s.holds(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether the subject satisfies every name in the list.
func HasAll(s *Subject, names []string) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	for _, name := range names {
		if name == AuditSentinel {
			if !HasAuditAccess(s) {
				return false
			}
			continue
		}
		if !s.holds(name) {
			return false
		}
	}
	return true
}

// HasRole reports whether the subject holds the named role,
// case-insensitively.
func HasRole(s *Subject, role string) bool {
	return s != nil && strings.EqualFold(s.Role, role)
}

// HasAnyRole reports whether the subject holds any of the named roles.
func HasAnyRole(s *Subject, roles []string) bool {
	if s == nil {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(s.Role, role) {
			return true
		}
	}
	return false
}

// CanPerformAction reports whether the subject may apply an action to a
// resource. It accepts either the specific "{resource}_{action}" permission
// or the blanket "{resource}_management" permission; admins always may.
func CanPerformAction(s *Subject, action, resource string) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	return s.holds(resource+"_"+action) || s.holds(resource+"_management")
}

// Guarded is implemented by items that declare a required permission,
// possibly the audit sentinel. An empty requirement means unrestricted.
type Guarded interface {
	RequiredPermission() string
}

// FilterAllowed retains only the items whose declared permission the subject
// satisfies. A nil subject gets nothing.
func FilterAllowed[T Guarded](s *Subject, items []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Has(s, item.RequiredPermission()) {
			out = append(out, item)
		}
	}
	return out
}
