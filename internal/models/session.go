package models

import "time"

// SessionRecord is what the gate hands out after a successful login and
// what page-level checks read back. It is only trusted once its signature
// has been verified.
type SessionRecord struct {
	ID        string    `json:"sid"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Username  string    `json:"username,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
