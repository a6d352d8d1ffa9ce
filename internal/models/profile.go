package models

import "time"

// Role is the portal role stored on a profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// UserProfile is the per-user record that carries role and approval state.
// It is keyed by the identity provider's uid.
type UserProfile struct {
	// UID is the identity provider's stable user identifier.
	UID string `gorm:"primaryKey" json:"uid"`
	// Username is the display name chosen at registration.
	Username string `json:"username"`
	Email    string `gorm:"index" json:"email"`
	Role     Role   `gorm:"type:text;not null" json:"role"`
	// Approved gates teacher access; students are created approved.
	Approved      bool      `gorm:"index" json:"approved"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RequiresApproval reports whether a freshly registered profile with this
// role starts out unapproved.
func (r Role) RequiresApproval() bool {
	return r == RoleTeacher
}

// SelfService reports whether users may register themselves with this role.
func (r Role) SelfService() bool {
	return r == RoleStudent || r == RoleTeacher
}
