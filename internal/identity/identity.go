// Package identity verifies the tokens issued by the external identity
// provider and issues the portal's own signed session tokens.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotConfigured = errors.New("token verification is not configured")
)

// Identity is an authenticated provider account.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	// Provider is the sign-in method, e.g. "password" or "google.com".
	Provider string
}

// Claims mirrors the provider's ID token payload.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Firebase      struct {
		SignInProvider string `json:"sign_in_provider,omitempty"`
	} `json:"firebase"`
	jwt.RegisteredClaims
}

// Verifier checks provider ID tokens. It accepts RS256 tokens when a
// public key is configured, HS256 tokens signed with a shared secret
// otherwise.
type Verifier struct {
	keyFunc  jwt.Keyfunc
	method   string
	issuer   string
	audience string
}

func NewVerifier(secret, publicKeyPEM, issuer, audience string) (*Verifier, error) {
	v := &Verifier{issuer: issuer, audience: audience}
	switch {
	case publicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256.Alg()
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
	case secret != "":
		v.method = jwt.SigningMethodHS256.Alg()
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }
	default:
		return nil, ErrNotConfigured
	}
	return v, nil
}

// Verify parses and validates a provider ID token.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if v == nil {
		return nil, ErrNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UID:           claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Provider:      claims.Firebase.SignInProvider,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
