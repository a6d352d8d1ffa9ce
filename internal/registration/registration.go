// Package registration creates user profiles: self-service sign-up,
// first-time federated sign-in, and operator provisioning.
package registration

import (
	"context"
	"errors"
	"log"
	"proctorportal/backend/internal/identity"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/storage"
	"strings"
	"time"
)

var (
	ErrInvalidRole     = errors.New("role must be student or teacher")
	ErrMissingUsername = errors.New("username is required")
)

// ProfileWriter is the part of the store registration needs.
type ProfileWriter interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	SetApproval(ctx context.Context, uid string, approved bool) error
}

type Service struct {
	Profiles ProfileWriter
	Now      func() time.Time
}

func NewService(p ProfileWriter) *Service {
	return &Service{Profiles: p, Now: time.Now}
}

// Register creates the profile of a newly signed-up identity. Teachers
// start unapproved. Email verification is copied, not enforced: the gate
// checks it at the next login.
func (s *Service) Register(ctx context.Context, id identity.Identity, username string, role models.Role) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if !role.SelfService() {
		return nil, ErrInvalidRole
	}

	profile := &models.UserProfile{
		UID:           id.UID,
		Username:      username,
		Email:         id.Email,
		Role:          role,
		Approved:      !role.RequiresApproval(),
		EmailVerified: id.EmailVerified,
		CreatedAt:     s.Now().UTC(),
	}
	if err := s.Profiles.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	log.Printf("INFO: Registered %s profile %s (approved=%t)", profile.Role, profile.UID, profile.Approved)
	return profile, nil
}

// EnsureFederatedProfile creates an approved student profile on the first
// federated sign-in. Existing profiles are returned untouched.
func (s *Service) EnsureFederatedProfile(ctx context.Context, id identity.Identity) (*models.UserProfile, bool, error) {
	existing, err := s.Profiles.GetProfile(ctx, id.UID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrProfileNotFound) {
		return nil, false, err
	}

	username := id.Name
	if username == "" {
		username, _, _ = strings.Cut(id.Email, "@")
	}
	profile := &models.UserProfile{
		UID:           id.UID,
		Username:      username,
		Email:         id.Email,
		Role:          models.RoleStudent,
		Approved:      true,
		EmailVerified: true,
		CreatedAt:     s.Now().UTC(),
	}
	if err := s.Profiles.CreateProfile(ctx, profile); err != nil {
		// Two concurrent first sign-ins: the other request won.
		if errors.Is(err, storage.ErrProfileExists) {
			existing, err := s.Profiles.GetProfile(ctx, id.UID)
			return existing, false, err
		}
		return nil, false, err
	}

	log.Printf("INFO: Created federated student profile %s", profile.UID)
	return profile, true, nil
}

// Provision upserts a profile with an explicit role and approval, for
// operator tooling. CreatedAt is kept when the profile already exists.
func (s *Service) Provision(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	existing, err := s.Profiles.GetProfile(ctx, profile.UID)
	switch {
	case err == nil:
		profile.CreatedAt = existing.CreatedAt
	case errors.Is(err, storage.ErrProfileNotFound):
		profile.CreatedAt = s.Now().UTC()
	default:
		return nil, err
	}

	if err := s.Profiles.SaveProfile(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetApproval is the admin approval step.
func (s *Service) SetApproval(ctx context.Context, uid string, approved bool) error {
	if err := s.Profiles.SetApproval(ctx, uid, approved); err != nil {
		return err
	}
	log.Printf("INFO: Profile %s approved=%t", uid, approved)
	return nil
}
