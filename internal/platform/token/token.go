// Package token issues and validates the HS256 service tokens used to guard
// administrative endpoints.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim required by the admin middleware.
const RoleAdmin = "admin"

// Claims are the validated contents of a service token.
type Claims struct {
	Subject string
	Role    string
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator checks and mints HS256 tokens with a shared signing key.
type Validator struct {
	key []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{key: []byte(signingKey)}
}

// ValidateToken parses and verifies a token string.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return &Claims{Subject: claims.Subject, Role: claims.Role}, nil
}

// Issue mints a token for the given subject and role.
func (v *Validator) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
