// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/birdtrack/support-platform/internal/identity"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// EmailKey is the context key for the user's email.
	EmailKey ContextKey = "email"
	// RoleKey is the context key for the resolved role.
	RoleKey ContextKey = "role"
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Auth creates JWT authentication middleware. Requests without a valid
// bearer token are rejected.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(r, jwtSecret)
			if !ok {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches identity when a valid bearer token is present
// and lets the request through anonymously otherwise. Support chat is
// open to unauthenticated visitors.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := parseBearer(r, jwtSecret); ok {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin resolves the caller's role and rejects non-admins. The
// role lands in the context as an explicit resolved value; an
// unresolved role fails closed.
func RequireAdmin(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			role, err := resolver.Resolve(r.Context(), userID)
			if err != nil || !role.IsAdmin() {
				http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(r *http.Request, jwtSecret string) (*Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
	ctx = context.WithValue(ctx, EmailKey, claims.Email)
	return ctx
}

// GetUserID gets user ID from context, empty for anonymous requests.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetEmail gets the user's email from context.
func GetEmail(ctx context.Context) string {
	if v := ctx.Value(EmailKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetRole gets the resolved role from context; RoleUnknown when no
// resolution has happened on this request.
func GetRole(ctx context.Context) identity.Role {
	if v := ctx.Value(RoleKey); v != nil {
		return v.(identity.Role)
	}
	return identity.RoleUnknown
}

// SessionFrom assembles the acting session from request context.
func SessionFrom(ctx context.Context) identity.Session {
	return identity.Session{
		UserID: GetUserID(ctx),
		Email:  GetEmail(ctx),
		Role:   GetRole(ctx),
	}
}
