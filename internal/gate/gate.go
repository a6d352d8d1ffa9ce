// Package gate decides where an authenticated user may go after login.
//
// The decision is a single profile read followed by a branch on the
// profile's role and approval flag. Privileged emails skip the profile
// entirely: such an identity is granted the admin role WITHOUT any stored
// profile, so the privileged set must be kept short and owned by
// operators.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage"
	"strings"
)

var (
	ErrEmailNotVerified = errors.New("email address is not verified")
	ErrProfileNotFound  = errors.New("no profile found")
	ErrPendingApproval  = errors.New("account is pending admin approval")
	ErrUnknownRole      = errors.New("unknown role")
)

// ProfileReader is the part of the store the gate needs.
type ProfileReader interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
}

// SessionIssuer signs a session record.
type SessionIssuer interface {
	Issue(rec models.SessionRecord) (models.SessionRecord, string, error)
}

// Destinations maps roles to landing pages.
type Destinations struct {
	Admin   string
	Teacher string
	Student string
}

// PrivilegedSet is a case-insensitive set of email addresses.
type PrivilegedSet map[string]struct{}

func NewPrivilegedSet(emails []string) PrivilegedSet {
	set := make(PrivilegedSet, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func (p PrivilegedSet) Contains(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := p[email]
	return ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Decision is a granted login.
type Decision struct {
	Role        models.Role          `json:"role"`
	Destination string               `json:"destination"`
	Session     models.SessionRecord `json:"session"`
	Token       string               `json:"token"`
}

// Denial wraps one of the gate's sentinel errors. SignOut tells the caller
// to terminate the user's identity session.
type Denial struct {
	Err     error
	SignOut bool
	Role    models.Role
}

func (d *Denial) Error() string {
	if d.Role != "" {
		return fmt.Sprintf("%v: %q", d.Err, d.Role)
	}
	return d.Err.Error()
}

func (d *Denial) Unwrap() error { return d.Err }

type Gate struct {
	Profiles     ProfileReader
	Sessions     storage.SessionCache
	Issuer       SessionIssuer
	Privileged   PrivilegedSet
	Destinations Destinations
}

func New(profiles ProfileReader, sessions storage.SessionCache, issuer SessionIssuer, privileged PrivilegedSet, dest Destinations) *Gate {
	return &Gate{
		Profiles:     profiles,
		Sessions:     sessions,
		Issuer:       issuer,
		Privileged:   privileged,
		Destinations: dest,
	}
}

// Decide runs the post-login checks for an authenticated identity.
// Denials are returned as *Denial; store failures are returned as is.
func (g *Gate) Decide(ctx context.Context, id identity.Identity) (*Decision, error) {
	if !id.EmailVerified {
		g.terminate(ctx, id.UID)
		return nil, &Denial{Err: ErrEmailNotVerified, SignOut: true}
	}

	if g.Privileged.Contains(id.Email) {
		return g.grant(ctx, models.SessionRecord{
			UID:   id.UID,
			Email: id.Email,
			Role:  models.RoleAdmin,
		}, g.Destinations.Admin)
	}

	profile, err := g.Profiles.GetProfile(ctx, id.UID)
	if errors.Is(err, storage.ErrProfileNotFound) {
		g.terminate(ctx, id.UID)
		return nil, &Denial{Err: ErrProfileNotFound, SignOut: true}
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", id.UID, err)
	}

	if !profile.Approved {
		g.terminate(ctx, id.UID)
		return nil, &Denial{Err: ErrPendingApproval, SignOut: true, Role: profile.Role}
	}

	var destination string
	switch profile.Role {
	case models.RoleTeacher:
		destination = g.Destinations.Teacher
	case models.RoleStudent:
		destination = g.Destinations.Student
	default:
		return nil, &Denial{Err: ErrUnknownRole, Role: profile.Role}
	}

	return g.grant(ctx, models.SessionRecord{
		UID:      id.UID,
		Email:    id.Email,
		Role:     profile.Role,
		Username: profile.Username,
	}, destination)
}

func (g *Gate) grant(ctx context.Context, rec models.SessionRecord, destination string) (*Decision, error) {
	rec, token, err := g.Issuer.Issue(rec)
	if err != nil {
		return nil, err
	}

	// The signed token is authoritative; the cache only enables revocation.
	if g.Sessions != nil {
		if err := g.Sessions.SaveSession(ctx, rec); err != nil {
			log.Printf("WARNING: Failed to cache session for %s: %v", rec.UID, err)
		}
	}

	return &Decision{
		Role:        rec.Role,
		Destination: destination,
		Session:     rec,
		Token:       token,
	}, nil
}

// Terminate revokes every cached session of uid.
func (g *Gate) Terminate(ctx context.Context, uid string) {
	g.terminate(ctx, uid)
}

func (g *Gate) terminate(ctx context.Context, uid string) {
	if g.Sessions == nil || uid == "" {
		return
	}
	if err := g.Sessions.RevokeSessions(ctx, uid); err != nil {
		log.Printf("WARNING: Failed to revoke sessions for %s: %v", uid, err)
	}
}
