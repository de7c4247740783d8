package models

import "github.com/google/uuid"

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Role      UserRole
	RequestID string
	IPAddress string
	UserAgent string
}

// CanManage reports whether the actor may author manuals and manage staff
func (a Actor) CanManage() bool {
	return a.Role.IsManager()
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
