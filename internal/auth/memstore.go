package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"authgate.io/internal/ids"
)

// MemoryStore is an in-process Store for development and tests. It
// enforces the same uniqueness and referential rules the Postgres store
// does so the service layer behaves identically against either.
type MemoryStore struct {
	mu sync.Mutex

	users       map[string]User
	roles       map[string]Role
	permissions map[string]Permission
	userRoles   map[string]map[string]time.Time // user id -> role id -> assigned at
	rolePerms   map[string]map[string]struct{}  // role id -> permission id

	now func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]User),
		roles:       make(map[string]Role),
		permissions: make(map[string]Permission),
		userRoles:   make(map[string]map[string]time.Time),
		rolePerms:   make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

// SetClock overrides the time source (useful for tests).
func (m *MemoryStore) SetClock(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already exists", ErrConflict)
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("%w: username already exists", ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := m.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		for otherID, other := range m.users {
			if otherID != id && strings.EqualFold(other.Email, *upd.Email) {
				return User{}, fmt.Errorf("%w: email already exists", ErrConflict)
			}
		}
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		for otherID, other := range m.users {
			if otherID != id && strings.EqualFold(other.Username, *upd.Username) {
				return User{}, fmt.Errorf("%w: username already exists", ErrConflict)
			}
		}
		u.Username = *upd.Username
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	u.UpdatedAt = m.now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemoryStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = m.now().UTC()
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) TouchLastLogin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	now := m.now().UTC()
	u.LastLoginAt = &now
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) CreateRole(ctx context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("%w: role name already exists", ErrConflict)
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	now := m.now().UTC()
	role.CreatedAt, role.UpdatedAt = now, now
	m.roles[role.ID] = *role
	return nil
}

func (m *MemoryStore) GetRole(ctx context.Context, id string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *MemoryStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *MemoryStore) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Name != nil {
		for otherID, other := range m.roles {
			if otherID != id && other.Name == *upd.Name {
				return Role{}, fmt.Errorf("%w: role name already exists", ErrConflict)
			}
		}
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	role.UpdatedAt = m.now().UTC()
	m.roles[id] = role
	return role, nil
}

func (m *MemoryStore) DeleteRole(ctx context.Context, id string, cascade bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	if !cascade {
		for _, assigned := range m.userRoles {
			if _, held := assigned[id]; held {
				return fmt.Errorf("%w: role is assigned to users", ErrConflict)
			}
		}
	}
	for userID := range m.userRoles {
		delete(m.userRoles[userID], id)
	}
	delete(m.rolePerms, id)
	delete(m.roles, id)
	return nil
}

func (m *MemoryStore) CreatePermission(ctx context.Context, perm *Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.permissions {
		if existing.Resource == perm.Resource && existing.Action == perm.Action {
			return fmt.Errorf("%w: permission already exists", ErrConflict)
		}
	}
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	now := m.now().UTC()
	perm.CreatedAt, perm.UpdatedAt = now, now
	m.permissions[perm.ID] = *perm
	return nil
}

func (m *MemoryStore) GetPermission(ctx context.Context, id string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perm, ok := m.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return perm, nil
}

func (m *MemoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, perm := range m.permissions {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *MemoryStore) UpdatePermissionDescription(ctx context.Context, id, description string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perm, ok := m.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	perm.Description = description
	perm.UpdatedAt = m.now().UTC()
	m.permissions[id] = perm
	return perm, nil
}

func (m *MemoryStore) DeletePermission(ctx context.Context, id string, cascade bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.permissions[id]; !ok {
		return ErrNotFound
	}
	if !cascade {
		for _, perms := range m.rolePerms {
			if _, referenced := perms[id]; referenced {
				return fmt.Errorf("%w: permission is referenced by roles", ErrConflict)
			}
		}
	}
	for roleID := range m.rolePerms {
		delete(m.rolePerms[roleID], id)
	}
	delete(m.permissions, id)
	return nil
}

func (m *MemoryStore) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	byKey := make(map[string]string, len(m.permissions))
	for id, perm := range m.permissions {
		byKey[perm.Key()] = id
	}
	next := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		id, ok := byKey[key]
		if !ok {
			return fmt.Errorf("%w: unknown permission %q", ErrNotFound, key)
		}
		next[id] = struct{}{}
	}
	m.rolePerms[roleID] = next
	return nil
}

func (m *MemoryStore) ListPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Permission, 0, len(m.rolePerms[roleID]))
	for id := range m.rolePerms[roleID] {
		out = append(out, m.permissions[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *MemoryStore) AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]time.Time)
	}
	at, ok := m.userRoles[userID][roleID]
	if !ok {
		at = m.now().UTC()
		m.userRoles[userID][roleID] = at
	}
	return UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: at}, nil
}

func (m *MemoryStore) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.userRoles[userID][roleID]; !ok {
		return ErrNotFound
	}
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *MemoryStore) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	next := make(map[string]time.Time, len(roleIDs))
	now := m.now().UTC()
	for _, roleID := range roleIDs {
		if _, ok := m.roles[roleID]; !ok {
			return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
		}
		if at, held := m.userRoles[userID][roleID]; held {
			next[roleID] = at
		} else {
			next[roleID] = now
		}
	}
	m.userRoles[userID] = next
	return nil
}

func (m *MemoryStore) ListRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, ErrNotFound
	}
	grants := make([]RoleGrant, 0, len(m.userRoles[userID]))
	for roleID := range m.userRoles[userID] {
		role := m.roles[roleID]
		perms := make([]Permission, 0, len(m.rolePerms[roleID]))
		for permID := range m.rolePerms[roleID] {
			perms = append(perms, m.permissions[permID])
		}
		sort.Slice(perms, func(i, j int) bool { return perms[i].Key() < perms[j].Key() })
		grants = append(grants, RoleGrant{Role: role, Permissions: perms})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].Role.Name < grants[j].Role.Name })
	return grants, nil
}

var _ Store = (*MemoryStore)(nil)
