// Package auth is the session provider: it issues and verifies session
// tokens, hashes passwords, and talks to GitHub for OAuth sign-in.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The client signs up or signs in (email/password or GitHub).
//  2. The server issues a signed JWT and stores it in an HttpOnly cookie.
//     API clients may send the same token as "Authorization: Bearer <jwt>".
//  3. On later requests the middleware validates the token and puts the
//     caller's model.Identity in the request context.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<identity id>","email":"a@x.com","exp":1234567890,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sakif/catgram/internal/model"
)

const (
	issuer = "catgram"

	// DefaultTokenTTL is the session lifetime when none is configured.
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is how long issued tokens stay valid. The session cookie uses the
// same lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" holds the identity ID.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Generate signs a session token for identity with the configured TTL.
func (s *TokenService) Generate(identity *model.Identity) (string, error) {
	return s.GenerateWithDuration(identity, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Tests use it to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(identity *model.Identity, d time.Duration) (string, error) {
	if identity == nil || identity.ID == "" {
		return "", errors.New("auth: cannot issue a token without an identity id")
	}
	now := s.now()

	c := claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the identity it was
// issued for.
//
// The jwt library checks the signature, expiry and issuer. Passing
// jwt.WithValidMethods rejects "none" and any non-HMAC algorithm.
func (s *TokenService) Validate(tokenStr string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &model.Identity{ID: c.Subject, Email: c.Email}, nil
}
