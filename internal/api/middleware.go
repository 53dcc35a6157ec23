/**
 * @description
 * This file contains the gateway's session middleware. The gateway mints an
 * HS256-signed JWT at login/onboarding; every protected route requires it
 * as a bearer token and must match the currently restored principal.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: Token signing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PrincipalIDContextKey is a custom type for the context key to avoid collisions.
type PrincipalIDContextKey string

const principalIDKey PrincipalIDContextKey = "principalID"

// MintSessionToken issues the gateway session JWT for a principal.
func MintSessionToken(signingKey []byte, principalID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   principalID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(signingKey)
}

// SessionAuthMiddleware validates the bearer token and places the principal
// ID on the request context.
func SessionAuthMiddleware(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required", codeUnauthenticated)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format", codeUnauthenticated)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token", codeUnauthenticated)
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				writeError(w, http.StatusUnauthorized, "Principal not found in token", codeUnauthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), principalIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipalID retrieves the authenticated principal's ID from the request
// context.
func GetPrincipalID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalIDKey).(string)
	return id, ok
}
