// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/constants"
	"github.com/vannpham/mosava/internal/platform/ctxutil"
	"github.com/vannpham/mosava/internal/platform/respond"
	"github.com/vannpham/mosava/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify admin tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the [sec.TokenService]
// implementation, allowing us to easily inject mocks during unit testing.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AdminClaims, error)
}

// Authenticate extracts and verifies the admin token from the request.
//
// # Flow
//  1. Check the 'api_key' header, then 'Authorization: Bearer <token>'.
//  2. If absent, request proceeds as anonymous.
//  3. If present, parse and verify the JWT via [TokenVerifier].
//  4. Inject [*sec.AdminClaims] into the request context for downstream use.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Token Extraction ───────────────────────────────────────────
			tokenStr := request.Header.Get(constants.APIKeyHeader)
			if tokenStr == "" {
				authHeader := request.Header.Get("Authorization")
				if authHeader == "" {
					next.ServeHTTP(writer, request)
					return
				}
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
					respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
					return
				}
				tokenStr = parts[1]
			}

			// ── 2. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyToken(tokenStr)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAdmin(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAdmin blocks requests that do not carry verified admin claims.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetAdmin(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Admin authentication required"))
			return
		}
		if claims.Subject != constants.AdminSubject {
			respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
