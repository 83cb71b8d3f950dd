/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth
 * middleware validates the session JWT, resolves the authenticated account
 * from the store, and places a CallerIdentity on the request context so
 * handlers always act on fresh role and frozen state rather than stale
 * token claims. A separate middleware guards the internal service-to-service
 * endpoints with a shared API key.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT validation.
 * - internal/domain, internal/store: Caller identity resolution.
 */

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/playvault/economy-service/internal/domain"
	"github.com/playvault/economy-service/internal/store"
)

// callerContextKey is a custom type for the context key to avoid collisions.
type callerContextKey string

const callerKey callerContextKey = "caller"

// GetCaller retrieves the authenticated caller from the request context.
func GetCaller(ctx context.Context) (domain.CallerIdentity, bool) {
	caller, ok := ctx.Value(callerKey).(domain.CallerIdentity)
	return caller, ok
}

// AuthMiddleware creates a middleware that validates the session JWT and
// resolves the caller's account. Tokens carry the account ID in the standard
// 'sub' claim; roles and frozen state are always read from the store.
func AuthMiddleware(jwtSecret string, repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			subject, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "Account ID not found in token", http.StatusUnauthorized)
				return
			}
			accountID, err := uuid.Parse(subject)
			if err != nil {
				http.Error(w, "Invalid account ID in token", http.StatusUnauthorized)
				return
			}

			account, err := repo.FindAccountByID(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, store.ErrAccountNotFound) {
					http.Error(w, "Account no longer exists", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Failed to resolve account", http.StatusInternalServerError)
				return
			}

			caller := domain.CallerIdentity{
				ID:         account.ID,
				CardNumber: account.CardNumber,
				Nickname:   account.Nickname,
				Roles:      account.Roles,
				IsFrozen:   account.IsFrozen,
			}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InternalAuthMiddleware guards service-to-service endpoints with a shared
// API key carried in the X-Internal-Api-Key header.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				http.Error(w, "Internal API is not configured", http.StatusServiceUnavailable)
				return
			}
			provided := r.Header.Get("X-Internal-Api-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
