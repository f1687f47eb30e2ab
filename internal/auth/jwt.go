// Package auth provides credential primitives for the dealership API:
// bcrypt password hashing, signed bearer tokens, the Google OAuth exchange,
// and the middleware that authenticates profile requests.
//
// TOKEN FLOW:
//  1. Register, login or the Google callback succeeds in the service layer
//  2. TokenService.Issue signs {sub: userID, role} with a 30-day expiry
//  3. The client sends it back as "Authorization: Bearer <token>"
//  4. RequireAuth validates it and puts the user id and role in the context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","role":"user","jti":"<uuid>","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Role and subject always come from the stored User record, never from
// client input.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/autodealer/internal/model"
)

// TokenTTL is the absolute lifetime of an issued token. There is no refresh.
const TokenTTL = 30 * 24 * time.Hour

const issuer = "autodealer"

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Claims is the JWT payload.
//
// jwt.RegisteredClaims carries Subject (the user id), ID (jti), IssuedAt and
// ExpiresAt. A random jti makes every issued token distinct, even two issued
// for the same user within the same second.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID is the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issue creates and signs a new bearer token for userID with the given role.
func (s *TokenService) Issue(userID string, role model.Role) (string, error) {
	return s.issue(userID, role, TokenTTL)
}

// issue is Issue with a custom lifetime. Tests use it to mint
// already-expired tokens.
func (s *TokenService) issue(userID string, role model.Role, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	if !role.Valid() {
		return "", fmt.Errorf("auth: unknown role %q", role)
	}

	now := s.now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
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

// Validate parses and verifies a JWT string and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired and has an expiry at all
//   - Issuer matches "autodealer"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
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

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if !c.Role.Valid() {
		return nil, fmt.Errorf("auth: token has unknown role %q", c.Role)
	}

	return c, nil
}
