package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"proctorportal/backend/internal/models"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "proctorportal"

type sessionClaims struct {
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Username string      `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies session records.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// RandomSecret returns a fresh secret for processes started without
// SESSION_SECRET. Sessions signed with it do not survive a restart.
func RandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString() + uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// Issue stamps rec with a new id and validity window and signs it.
func (s *SessionIssuer) Issue(rec models.SessionRecord) (models.SessionRecord, string, error) {
	now := s.now().UTC().Truncate(time.Second)
	rec.ID = uuid.New().String()
	rec.IssuedAt = now
	rec.ExpiresAt = now.Add(s.ttl)

	claims := sessionClaims{
		Email:    rec.Email,
		Role:     rec.Role,
		Username: rec.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID,
			Subject:   rec.UID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(rec.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.SessionRecord{}, "", fmt.Errorf("sign session: %w", err)
	}
	return rec, token, nil
}

// Parse verifies a session token and returns the record it carries.
func (s *SessionIssuer) Parse(tokenString string) (*models.SessionRecord, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &models.SessionRecord{
		ID:        claims.ID,
		UID:       claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
