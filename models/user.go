package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a user within an organization
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleAreaManager UserRole = "area_manager"
	RoleStaff       UserRole = "staff"
)

// InviteTTL is how long a freshly issued invite token stays valid
const InviteTTL = 7 * 24 * time.Hour

// IsValid reports whether the role is one of the known roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleAreaManager, RoleStaff:
		return true
	}
	return false
}

// IsManager reports whether the role may author manuals and manage staff
func (r UserRole) IsManager() bool {
	return r == RoleAdmin || r == RoleAreaManager
}

// User is a tenant member. AuthID links the row to the external identity
// provider and stays nil until the invite has been redeemed.
type User struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	Email           *string    `json:"email,omitempty" db:"email"`
	Role            UserRole   `json:"role" db:"role"`
	DisplayName     string     `json:"display_name" db:"display_name"`
	Language        Locale     `json:"language" db:"language"`
	OrgID           uuid.UUID  `json:"organization_id" db:"organization_id"`
	IsAdmin         bool       `json:"is_admin" db:"is_admin"`
	InviteToken     *string    `json:"-" db:"invite_token"`
	InviteExpiresAt *time.Time `json:"invite_expires_at,omitempty" db:"invite_expires_at"`
	IsOnboarded     bool       `json:"is_onboarded" db:"is_onboarded"`
	AuthID          *string    `json:"-" db:"auth_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(orgID uuid.UUID, userID, displayName string, role UserRole, language Locale) *User {
	now := time.Now()
	return &User{
		ID:          uuid.New(),
		UserID:      userID,
		Role:        role,
		DisplayName: displayName,
		Language:    language,
		OrgID:       orgID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanManage returns true if the user can author manuals and manage staff
func (u *User) CanManage() bool {
	return u.Role.IsManager()
}

// EmailAddress returns the email or an empty string
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// SetInvite stores a fresh invite token valid for InviteTTL from now
func (u *User) SetInvite(token string, now time.Time) {
	expires := now.Add(InviteTTL)
	u.InviteToken = &token
	u.InviteExpiresAt = &expires
}

// InviteExpired reports whether the invite token is past its expiry
func (u *User) InviteExpired(now time.Time) bool {
	return u.InviteExpiresAt != nil && now.After(*u.InviteExpiresAt)
}

// CompleteOnboarding links the user to an identity and burns the invite
func (u *User) CompleteOnboarding(authID, email string) {
	u.AuthID = &authID
	u.Email = &email
	u.IsOnboarded = true
	u.InviteToken = nil
	u.UpdatedAt = time.Now()
}
