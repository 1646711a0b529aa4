package permission

// AuditSentinel is the synthetic permission name that maps to the graded
// audit-log permissions instead of a single flag.
const AuditSentinel = "audit_logs"

// Graded audit permission names, ascending privilege.
const (
	// PermAuditBasic is an exported constant or variable used by the LIMS client.
	PermAuditBasic = "audit_logs_basic"
	// PermAuditSecurity is an exported constant or variable used by the LIMS client.
	PermAuditSecurity = "audit_logs_security"
	// PermAuditSystem is an exported constant or variable used by the LIMS client.
	PermAuditSystem = "audit_logs_system"
)

// AuditPermissions lists every graded audit permission, ascending.
var AuditPermissions = []string{PermAuditBasic, PermAuditSecurity, PermAuditSystem}

// Level orders the graded audit permissions. Higher levels satisfy lower
// requirements: system grants security and basic access, security grants
// basic.
type Level uint8

const (
	// LevelNone is an exported constant or variable used by the LIMS client.
	LevelNone Level = iota
	// LevelBasic is an exported constant or variable used by the LIMS client.
	LevelBasic
	// LevelSecurity is an exported constant or variable used by the LIMS client.
	LevelSecurity
	// LevelSystem is an exported constant or variable used by the LIMS client.
	LevelSystem
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelSecurity:
		return "security"
	case LevelSystem:
		return "system"
	default:
		return "none"
	}
}

// Permission returns the graded permission name for the level, empty for
// [LevelNone].
func (l Level) Permission() string {
	switch l {
	case LevelBasic:
		return PermAuditBasic
	case LevelSecurity:
		return PermAuditSecurity
	case LevelSystem:
		return PermAuditSystem
	default:
		return ""
	}
}

// ParseLevel maps the level names "basic", "security", and "system" to their
// [Level]; anything else is [LevelNone].
func ParseLevel(name string) Level {
	switch name {
	case "basic":
		return LevelBasic
	case "security":
		return LevelSecurity
	case "system":
		return LevelSystem
	default:
		return LevelNone
	}
}

// HasAuditAccess reports whether the subject holds any graded audit
// permission at all.
func HasAuditAccess(s *Subject) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	for _, name := range AuditPermissions {
		if s.holds(name) {
			return true
		}
	}
	return false
}

// HasAuditLevel reports whether the subject may read audit logs at the
// requested level: holding that level or any higher one qualifies.
func HasAuditLevel(s *Subject, level Level) bool {
	if s == nil || level == LevelNone {
		return false
	}
	return AuditLevelOf(s) >= level
}

// AuditLevelOf returns the highest graded audit level the subject holds.
// Admins report [LevelSystem].
func AuditLevelOf(s *Subject) Level {
	if s == nil {
		return LevelNone
	}
	if s.IsAdmin() {
		return LevelSystem
	}
	switch {
	case s.holds(PermAuditSystem):
		return LevelSystem
	case s.holds(PermAuditSecurity):
		return LevelSecurity
	case s.holds(PermAuditBasic):
		return LevelBasic
	default:
		return LevelNone
	}
}
