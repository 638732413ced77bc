package domain

import "time"

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Session is one campaign instance. ID is the store-assigned surrogate key;
// UUID is the stable identifier players use with /resume and /delete.
type Session struct {
	ID        string
	UUID      string
	CreatedAt time.Time
}

// Message is a single persisted transcript entry. Seq is the per-session
// monotonic sequence that defines replay order; wall-clock timestamps are
// informational only.
type Message struct {
	ID        string
	SessionID string
	Seq       int
	Role      Role
	Content   string
	CreatedAt time.Time
}
