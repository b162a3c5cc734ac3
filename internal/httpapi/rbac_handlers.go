package httpapi

import (
	"net/http"
	"strings"

	"authgate.io/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type createPermissionRequest struct {
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type updatePermissionRequest struct {
	Description string `json:"description"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type replaceUserRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Status    *string `json:"status"`
}

// pathTail splits the remainder of the URL after prefix into at most
// three non-empty segments.
func pathTail(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.SplitN(rest, "/", 3)
}

// --- roles ---

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermRoleRead) {
			return
		}
		roles, err := a.rbac.ListRoles(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermRoleManage) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.created", "role", role.ID, map[string]any{"name": role.Name})
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	seg := pathTail(r.URL.Path, "/v1/roles/")
	switch {
	case len(seg) == 1:
		a.handleRoleByID(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "permissions":
		a.handleRolePermissions(w, r, seg[0])
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermRoleRead) {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermRoleManage) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.updated", "role", role.ID, nil)
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermRoleManage) {
			return
		}
		cascade := r.URL.Query().Get("cascade") == "true"
		if err := a.rbac.DeleteRole(r.Context(), roleID, cascade); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.deleted", "role", roleID, map[string]any{"cascade": cascade})
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermRoleRead) {
			return
		}
		perms, err := a.rbac.ListPermissionsForRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermRoleManage) {
			return
		}
		var req setRolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		expanded, err := a.rbac.SetRolePermissions(r.Context(), roleID, req.Permissions)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "role.permissions_set", "role", roleID, map[string]any{
			"permissions": expanded,
		})
		writeJSON(w, http.StatusOK, map[string]any{"permissions": expanded})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// --- permissions ---

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermPermissionRead) {
			return
		}
		perms, err := a.rbac.ListPermissions(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermPermissionManage) {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.CreatePermission(r.Context(), req.Resource, req.Action, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "permission.created", "permission", perm.ID, map[string]any{"key": perm.Key()})
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	seg := pathTail(r.URL.Path, "/v1/permissions/")
	if len(seg) != 1 {
		http.NotFound(w, r)
		return
	}
	permissionID := seg[0]

	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermPermissionRead) {
			return
		}
		perm, err := a.rbac.GetPermission(r.Context(), permissionID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermPermissionManage) {
			return
		}
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.UpdatePermissionDescription(r.Context(), permissionID, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "permission.updated", "permission", perm.ID, nil)
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermPermissionManage) {
			return
		}
		cascade := r.URL.Query().Get("cascade") == "true"
		if err := a.rbac.DeletePermission(r.Context(), permissionID, cascade); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "permission.deleted", "permission", permissionID, map[string]any{"cascade": cascade})
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- users ---

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUserRead) {
		return
	}
	users, err := a.rbac.ListUsers(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	seg := pathTail(r.URL.Path, "/v1/users/")
	switch {
	case len(seg) == 1:
		a.handleUserByID(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "roles":
		a.handleUserRoles(w, r, seg[0])
	case len(seg) == 3 && seg[1] == "roles":
		a.handleUserRoleByID(w, r, seg[0], seg[2])
	case len(seg) == 2 && seg[1] == "permissions":
		a.handleUserPermissions(w, r, seg[0])
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUserRead) {
			return
		}
		user, err := a.rbac.GetUser(r.Context(), userID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermUserManage) {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), userID, auth.UserUpdate{
			Email:     req.Email,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Status:    req.Status,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "user.updated", "user", user.ID, nil)
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUserRead) {
			return
		}
		roles, err := a.rbac.UserRoles(r.Context(), userID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermUserManage) {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		assignment, err := a.rbac.AssignRole(r.Context(), userID, req.RoleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "user.role_assigned", "user", userID, map[string]any{"role_id": req.RoleID})
		writeJSON(w, http.StatusCreated, assignment)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermUserManage) {
			return
		}
		var req replaceUserRolesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.ReplaceUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "user.roles_replaced", "user", userID, map[string]any{"role_ids": req.RoleIDs})
		writeJSON(w, http.StatusOK, map[string]any{"status": "roles_replaced"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

// handleResources and handleActions expose the two axes of the
// permission catalog, mostly for admin UIs building pickers.
func (a *API) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermPermissionRead) {
		return
	}
	resources, err := a.rbac.ListResources(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (a *API) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermPermissionRead) {
		return
	}
	actions, err := a.rbac.ListActions(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (a *API) handleUserRoleByID(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUserManage) {
		return
	}
	if err := a.rbac.RemoveRoleAssignment(r.Context(), userID, roleID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.role_removed", "user", userID, map[string]any{"role_id": roleID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "role_removed"})
}

// handleUserPermissions returns the live resolution for a user, or
// answers a single membership question via ?check=resource:action.
func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUserRead) {
		return
	}
	if key := r.URL.Query().Get("check"); key != "" {
		ok, err := a.rbac.CheckUserPermission(r.Context(), userID, key)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permission": key, "allowed": ok})
		return
	}
	perms, err := a.rbac.UserPermissions(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
