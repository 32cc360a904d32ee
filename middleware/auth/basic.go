// Package auth provides credentials middleware: outbound for the REST client,
// inbound for the mock backend.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/preslavrachev/restoffice/middleware"
)

// AuthUser represents an authenticated caller
type AuthUser struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// BasicAuthUser represents a user configured for basic authentication
type BasicAuthUser struct {
	Username string
	Password string
	User     AuthUser
}

// NewBasicAuthUser creates a BasicAuthUser with the provided details
func NewBasicAuthUser(username, password string, roles []string) BasicAuthUser {
	return BasicAuthUser{
		Username: username,
		Password: password,
		User: AuthUser{
			Username: username,
			Roles:    roles,
		},
	}
}

// BasicAuth sends HTTP Basic credentials with every request
func BasicAuth(username, password string) middleware.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())
			r.SetBasicAuth(username, password)
			return next.RoundTrip(r)
		})
	}
}

// BearerToken sends an Authorization: Bearer header with every request
func BearerToken(token string) middleware.Middleware {
	return middleware.Header("Authorization", "Bearer "+token)
}

// RequireBasicAuth rejects requests without valid Basic credentials.
// Authenticated users are added to the request context.
func RequireBasicAuth(realm string, users map[string]BasicAuthUser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			user, exists := users[username]
			// Use constant time comparison to prevent timing attacks
			if !ok || !exists || subtle.ConstantTimeCompare([]byte(password), []byte(user.Password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), &user.User)))
		})
	}
}

// Context key for storing authenticated user in request context
type contextKey string

const authUserKey contextKey = "authUser"

// GetAuthUser retrieves the authenticated user from the request context
func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	user, ok := ctx.Value(authUserKey).(*AuthUser)
	return user, ok
}

// WithAuthUser adds an authenticated user to the request context
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, authUserKey, user)
}
