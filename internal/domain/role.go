package domain

import "fmt"

// Role is the back-office role held by an admin account.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleContentManager  Role = "content_manager"
	RoleMessagesManager Role = "messages_manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleContentManager, RoleMessagesManager:
		return true
	}
	return false
}

// Capability names one class of mutating operation.
type Capability string

const (
	CapProjectsWrite    Capability = "projects:write"
	CapBlogsWrite       Capability = "blogs:write"
	CapCommentsModerate Capability = "comments:moderate"
	CapMessagesRead     Capability = "messages:read"
	CapMessagesWrite    Capability = "messages:write"
	CapAdminsManage     Capability = "admins:manage"
	CapSettingsWrite    Capability = "settings:write"
)

// super_admin is granted every capability and is not listed here.
var capabilities = map[Role]map[Capability]bool{
	RoleContentManager: {
		CapProjectsWrite:    true,
		CapBlogsWrite:       true,
		CapCommentsModerate: true,
		CapSettingsWrite:    true,
		CapMessagesRead:     true,
	},
	RoleMessagesManager: {
		CapMessagesRead:     true,
		CapMessagesWrite:    true,
		CapCommentsModerate: true,
	},
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Email  string
	Role   Role
}

// Can reports whether the actor's role grants c.
func (a *Actor) Can(c Capability) bool {
	if a == nil {
		return false
	}
	if a.Role == RoleSuperAdmin {
		return true
	}
	return capabilities[a.Role][c]
}

// Authorize is the single policy check run before every mutating operation.
func Authorize(actor *Actor, c Capability) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.Can(c) {
		return fmt.Errorf("role %s lacks %s: %w", actor.Role, c, ErrForbidden)
	}
	return nil
}
