package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RBACService mutates the role/permission model the resolver reads.
// Mutations never touch already-minted access tokens: administration
// affects future logins and refreshes only. Operators who need immediate
// effect revoke the affected user's outstanding jtis explicitly.
type RBACService struct {
	store Store
}

// NewRBACService constructs the admin service.
func NewRBACService(store Store) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &RBACService{store: store}, nil
}

func (s *RBACService) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := Role{Name: name, Description: strings.TrimSpace(description)}
	if err := s.store.CreateRole(ctx, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

func (s *RBACService) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RBACService) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

func (s *RBACService) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(strings.ToLower(*upd.Name))
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.UpdateRole(ctx, roleID, upd)
}

// DeleteRole removes a role. While users still hold it the delete fails
// with ErrConflict unless cascade explicitly removes the assignments.
func (s *RBACService) DeleteRole(ctx context.Context, roleID string, cascade bool) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, roleID, cascade)
}

func (s *RBACService) CreatePermission(ctx context.Context, resource, action, description string) (Permission, error) {
	resource = strings.TrimSpace(strings.ToLower(resource))
	action = strings.TrimSpace(strings.ToLower(action))
	if resource == "" || action == "" {
		return Permission{}, fmt.Errorf("%w: resource and action are required", ErrInvalidInput)
	}
	if strings.ContainsAny(resource, ":*") || strings.ContainsAny(action, ":*") {
		return Permission{}, fmt.Errorf("%w: resource and action must not contain ':' or '*'", ErrInvalidInput)
	}
	perm := Permission{Resource: resource, Action: action, Description: strings.TrimSpace(description)}
	if err := s.store.CreatePermission(ctx, &perm); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *RBACService) GetPermission(ctx context.Context, permissionID string) (Permission, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return Permission{}, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.GetPermission(ctx, permissionID)
}

// UpdatePermissionDescription changes the one mutable field of a
// permission. Resource and action are fixed once created; renaming a
// capability means creating a new one.
func (s *RBACService) UpdatePermissionDescription(ctx context.Context, permissionID, description string) (Permission, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return Permission{}, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.UpdatePermissionDescription(ctx, permissionID, strings.TrimSpace(description))
}

func (s *RBACService) DeletePermission(ctx context.Context, permissionID string, cascade bool) error {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.DeletePermission(ctx, permissionID, cascade)
}

// SetRolePermissions replaces a role's permission set. "resource:*"
// aliases are expanded against the current catalog here, at assignment
// time, so checks stay exact-string lookups.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID string, keys []string) ([]string, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	catalog, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	expanded, err := ExpandAliases(keys, catalog)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRolePermissions(ctx, roleID, expanded); err != nil {
		return nil, err
	}
	return expanded, nil
}

func (s *RBACService) ListPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.ListPermissionsForRole(ctx, roleID)
}

func (s *RBACService) AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

func (s *RBACService) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.RemoveRoleAssignment(ctx, userID, roleID)
}

// ReplaceUserRoles swaps a user's entire role set, mirroring the admin
// "assign roles" operation.
func (s *RBACService) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	deduped := make([]string, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return s.store.ReplaceUserRoles(ctx, userID, deduped)
}

// UserRoles lists the roles currently assigned to a user, sorted by name.
func (s *RBACService) UserRoles(ctx context.Context, userID string) ([]Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	grants, err := s.store.ListRoleGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, g.Role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// ListResources returns the distinct resource names in the permission
// catalog, sorted.
func (s *RBACService) ListResources(ctx context.Context) ([]string, error) {
	return s.distinctCatalogField(ctx, func(p Permission) string { return p.Resource })
}

// ListActions returns the distinct action names in the permission
// catalog, sorted.
func (s *RBACService) ListActions(ctx context.Context) ([]string, error) {
	return s.distinctCatalogField(ctx, func(p Permission) string { return p.Action })
}

func (s *RBACService) distinctCatalogField(ctx context.Context, field func(Permission) string) ([]string, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		v := field(p)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// UserPermissions resolves a user's current effective permission set from
// role state. This is the live view; token snapshots may lag it.
func (s *RBACService) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	grants, err := s.store.ListRoleGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Resolve(grants), nil
}

// CheckUserPermission reports whether the user currently holds the
// permission, by exact key.
func (s *RBACService) CheckUserPermission(ctx context.Context, userID, key string) (bool, error) {
	if _, _, err := SplitPermissionKey(key); err != nil {
		return false, err
	}
	perms, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *RBACService) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *RBACService) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

// UpdateUser mutates profile fields and status. Deactivation is the only
// removal supported for users; there is no physical delete.
func (s *RBACService) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(strings.ToLower(*upd.Username))
		if username == "" {
			return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		upd.Username = &username
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != userStatusActive && status != userStatusDisabled {
			return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	return s.store.UpdateUser(ctx, userID, upd)
}
