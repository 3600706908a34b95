// Package identity resolves the acting user and their role. Admin
// status is carried as an explicit resolved value so callers can tell
// "not an admin" apart from "not resolved yet"; it is never shared as a
// mutable cell between components.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/birdtrack/support-platform/internal/model"
)

// Role is the resolved authorization level of a session.
type Role int

const (
	// RoleUnknown means resolution has not completed. Components with
	// an authorization boundary treat it as non-admin.
	RoleUnknown Role = iota
	RoleMember
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// IsAdmin reports whether the role is resolved-admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Session is the acting identity for one request or client session.
type Session struct {
	UserID string
	Email  string
	Role   Role
}

// ActorID returns the identifier recorded on rows written by this
// session, the literal anonymous marker when unauthenticated.
func (s Session) ActorID() string {
	if s.UserID == "" {
		return model.AnonymousUserID
	}
	return s.UserID
}

// RoleDirectory looks up the stored role of an account.
type RoleDirectory interface {
	GetUserRole(ctx context.Context, userID string) (model.UserRole, error)
}

// Resolver resolves roles against the directory and caches the answer
// for the lifetime of the process (session roles do not change mid-flight).
type Resolver struct {
	dir RoleDirectory

	mu    sync.RWMutex
	cache map[string]Role
}

// NewResolver creates a role resolver backed by the given directory.
func NewResolver(dir RoleDirectory) *Resolver {
	return &Resolver{
		dir:   dir,
		cache: make(map[string]Role),
	}
}

// Resolve returns the role for a user id. Anonymous sessions are always
// members. Lookup failures return RoleUnknown with the error so callers
// at authorization boundaries fail closed.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Role, error) {
	if userID == "" || userID == model.AnonymousUserID {
		return RoleMember, nil
	}

	r.mu.RLock()
	role, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return role, nil
	}

	stored, err := r.dir.GetUserRole(ctx, userID)
	if err != nil {
		return RoleUnknown, fmt.Errorf("failed to resolve role for %s: %w", userID, err)
	}

	role = RoleMember
	if stored == model.UserRoleAdmin {
		role = RoleAdmin
	}

	r.mu.Lock()
	r.cache[userID] = role
	r.mu.Unlock()

	return role, nil
}
