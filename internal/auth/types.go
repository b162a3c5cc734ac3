package auth

import (
	"fmt"
	"strings"
	"time"
)

const (
	userStatusActive   = "active"
	userStatusDisabled = "disabled"
)

const (
	UserStatusActive   = userStatusActive
	UserStatusDisabled = userStatusDisabled
)

// DefaultRoleName is attached to newly registered users when it exists.
const DefaultRoleName = "user"

// User is an identity record. Users are never physically deleted, only
// switched to the disabled status, so tokens and audit entries keep a
// resolvable subject.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Active reports whether the user may authenticate.
func (u User) Active() bool { return u.Status == userStatusActive }

// Role is a named collection of permissions. A role with zero users is
// valid and retained.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is an atomic capability. Resource and action are decomposed
// fields; the canonical string form is "resource:action". Once referenced
// by a role only the description may change.
type Permission struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the canonical "resource:action" form.
func (p Permission) Key() string { return p.Resource + ":" + p.Action }

// SplitPermissionKey decomposes "resource:action" into its fields.
func SplitPermissionKey(key string) (resource, action string, err error) {
	key = strings.TrimSpace(key)
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: permission key must be resource:action, got %q", ErrInvalidInput, key)
	}
	return parts[0], parts[1], nil
}

// RoleGrant is the read-only view the resolver consumes: a role together
// with the permissions currently attached to it.
type RoleGrant struct {
	Role        Role
	Permissions []Permission
}

// UserRoleAssignment links a user to a role.
type UserRoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserUpdate carries optional profile mutations; nil fields are untouched.
type UserUpdate struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
	Status    *string
}

// RoleUpdate carries optional role mutations.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// TokenPair bundles the freshly minted access and refresh tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
