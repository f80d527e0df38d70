// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package sec provides security primitives for admin token management.

It handles the full lifecycle of stateless authentication tokens using
HMAC-SHA256 signed JWTs.

Token claims:

  - sub: the admin subject (constants.AdminSubject).
  - iss: the token issuer (constants.AuthIssuer).
  - exp/iat: standard expiry and issued-at timestamps.

Admin tokens are minted offline by the genkey tool and presented in the
'api_key' header (or as a Bearer token) on admin routes.
*/
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/constants"
)

// AdminClaims defines the payload embedded in admin JWTs.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies admin tokens.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a new token service with the given signing secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: constants.AuthIssuer,
	}
}

// GenerateAdminToken creates a signed admin JWT valid for the given lifetime.
// A non-positive lifetime produces a token without an expiry claim.
func (s *TokenService) GenerateAdminToken(lifetime time.Duration) (string, error) {

	now := time.Now()

	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  constants.AdminSubject,
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if lifetime > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign admin token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a signed admin token string.
//
// It enforces the HS256 signing method, the issuer, and the admin subject.
// All failures surface as a 401 [apperr.AppError].
func (s *TokenService) VerifyToken(tokenString string) (*AdminClaims, error) {

	claims := &AdminClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			// Reject any token signed with an unexpected algorithm.
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	if claims.Subject != constants.AdminSubject {
		return nil, apperr.Forbidden("Token does not carry admin privileges")
	}

	return claims, nil
}
