package auth

import "context"

// Store is the persistence boundary the auth core requires. Methods
// return domain entities or the package sentinel errors; no core logic
// depends on storage-engine behavior. Email and username lookups are
// case-insensitive.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string) error

	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	// DeleteRole fails with ErrConflict while users still hold the role
	// unless cascade is set, in which case the assignment rows go with it.
	DeleteRole(ctx context.Context, id string, cascade bool) error

	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermission(ctx context.Context, id string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermissionDescription(ctx context.Context, id, description string) (Permission, error)
	// DeletePermission fails with ErrConflict while roles reference it
	// unless cascade is set.
	DeletePermission(ctx context.Context, id string, cascade bool) error

	// SetRolePermissions replaces the role's permission set with the
	// given canonical keys. Unknown keys fail with ErrNotFound.
	SetRolePermissions(ctx context.Context, roleID string, keys []string) error
	ListPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)

	AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error)
	RemoveRoleAssignment(ctx context.Context, userID, roleID string) error
	// ReplaceUserRoles swaps the user's role set in one step.
	ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error
	// ListRoleGrants returns the user's roles with each role's
	// permissions attached: the resolver's input.
	ListRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error)
}
