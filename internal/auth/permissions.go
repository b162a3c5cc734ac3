package auth

// Canonical permission keys the service itself gates its admin surface
// on. The full seeded catalog lives in ops/migrations/seeds.
const (
	PermUserRead         = "user:read"
	PermUserManage       = "user:manage"
	PermRoleRead         = "role:read"
	PermRoleManage       = "role:manage"
	PermPermissionRead   = "permission:read"
	PermPermissionManage = "permission:manage"
	PermAPIRead          = "api:read"
	PermSystemMonitor    = "system:monitor"
)
