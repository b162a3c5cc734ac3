package auth

// Principal is an authenticated identity with its resolved permission
// set. When built from token claims the set is the mint-time snapshot;
// when built from the store it reflects current role state.
type Principal struct {
	UserID      string
	Email       string
	Username    string
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal from resolved permission keys.
func NewPrincipal(userID string, roles, permissions []string) Principal {
	set := make(map[string]struct{}, len(permissions))
	for _, key := range permissions {
		set[key] = struct{}{}
	}
	return Principal{UserID: userID, Roles: roles, Permissions: set}
}

// PrincipalFromClaims builds a principal out of a verified access token's
// embedded snapshot without touching the store.
func PrincipalFromClaims(claims *Claims) Principal {
	return NewPrincipal(claims.Subject, claims.Roles, claims.Permissions)
}

// HasPermission is an exact-string membership test against the canonical
// "resource:action" key. No wildcard or hierarchy matching.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// HasRole reports whether the principal holds the named role.
func (p Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// PermissionList returns the permission set as a slice for responses.
func (p Principal) PermissionList() []string {
	return sortedKeys(p.Permissions)
}
