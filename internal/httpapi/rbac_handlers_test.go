package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"authgate.io/internal/auth"
)

func TestRoleLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodPost, "/v1/roles", admin.AccessToken, map[string]string{
		"name":        "auditor",
		"description": "read-only oversight",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create role: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var role auth.Role
	decodeBody(t, rr, &role)
	if role.ID == "" || role.Name != "auditor" {
		t.Fatalf("unexpected role %+v", role)
	}

	rr = env.do(t, http.MethodPut, "/v1/roles/"+role.ID+"/permissions", admin.AccessToken, map[string]any{
		"permissions": []string{"user:*", auth.PermRoleRead},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set permissions: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var setResp struct {
		Permissions []string `json:"permissions"`
	}
	decodeBody(t, rr, &setResp)
	if len(setResp.Permissions) != 3 {
		t.Fatalf("user:* must expand to read+manage, got %v", setResp.Permissions)
	}

	rr = env.do(t, http.MethodGet, "/v1/roles/"+role.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get role: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/v1/roles/"+role.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete role: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/v1/roles/"+role.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted role: expected 404, got %d", rr.Code)
	}
}

func TestSetRolePermissionsUnknownAlias(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodPost, "/v1/roles", admin.AccessToken, map[string]string{"name": "clerk"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create role: expected 201, got %d", rr.Code)
	}
	var role auth.Role
	decodeBody(t, rr, &role)

	rr = env.do(t, http.MethodPut, "/v1/roles/"+role.ID+"/permissions", admin.AccessToken, map[string]any{
		"permissions": []string{"ghosts:*"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown alias: expected 400, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestPermissionCatalogOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodPost, "/v1/permissions", admin.AccessToken, map[string]string{
		"resource":    "invoices",
		"action":      "export",
		"description": "export invoice batches",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create permission: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var perm auth.Permission
	decodeBody(t, rr, &perm)
	if perm.Key() != "invoices:export" {
		t.Fatalf("unexpected key %s", perm.Key())
	}

	// Duplicate resource+action is a conflict.
	rr = env.do(t, http.MethodPost, "/v1/permissions", admin.AccessToken, map[string]string{
		"resource": "invoices",
		"action":   "export",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate permission: expected 409, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/v1/permissions/"+perm.ID, admin.AccessToken, map[string]string{
		"description": "export invoice batches as CSV",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update description: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/v1/permissions/"+perm.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete permission: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestUserAdministrationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodGet, "/v1/users", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rr.Code)
	}
	var list struct {
		Users []auth.User `json:"users"`
	}
	decodeBody(t, rr, &list)
	var bobID string
	for _, u := range list.Users {
		if u.Email == "bob@example.com" {
			bobID = u.ID
		}
	}
	if bobID == "" {
		t.Fatalf("bob not present in %v", list.Users)
	}

	rr = env.do(t, http.MethodGet, "/v1/users/"+bobID+"/permissions?check="+auth.PermAPIRead, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("check permission: expected 200, got %d", rr.Code)
	}
	var check struct {
		Allowed bool `json:"allowed"`
	}
	decodeBody(t, rr, &check)
	if !check.Allowed {
		t.Fatalf("bob holds the default role and must pass api:read")
	}

	rr = env.do(t, http.MethodPut, "/v1/users/"+bobID, admin.AccessToken, map[string]string{
		"status": auth.UserStatusDisabled,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("disable user: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": "bob-pass",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("disabled account login: expected 403, got %d", rr.Code)
	}
}

func TestRoleAssignmentOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodGet, "/v1/users", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rr.Code)
	}
	var list struct {
		Users []auth.User `json:"users"`
	}
	decodeBody(t, rr, &list)
	var bobID string
	for _, u := range list.Users {
		if u.Email == "bob@example.com" {
			bobID = u.ID
		}
	}

	rr = env.do(t, http.MethodPost, "/v1/roles", admin.AccessToken, map[string]string{"name": "ops"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create role: expected 201, got %d", rr.Code)
	}
	var role auth.Role
	decodeBody(t, rr, &role)
	rr = env.do(t, http.MethodPut, "/v1/roles/"+role.ID+"/permissions", admin.AccessToken, map[string]any{
		"permissions": []string{auth.PermSystemMonitor},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set permissions: expected 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/users/"+bobID+"/roles", admin.AccessToken, map[string]string{
		"role_id": role.ID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("assign role: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/v1/users/"+bobID+"/permissions", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("user permissions: expected 200, got %d", rr.Code)
	}
	var perms struct {
		Permissions []string `json:"permissions"`
	}
	decodeBody(t, rr, &perms)
	found := false
	for _, p := range perms.Permissions {
		if p == auth.PermSystemMonitor {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected system:monitor in %v", perms.Permissions)
	}

	rr = env.do(t, http.MethodDelete, "/v1/users/"+bobID+"/roles/"+role.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove assignment: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestUserRolesListing(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	bob, err := env.store.GetUserByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/v1/users/"+bob.ID+"/roles", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list user roles: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp struct {
		Roles []auth.Role `json:"roles"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Roles) != 1 || resp.Roles[0].Name != auth.DefaultRoleName {
		t.Fatalf("expected the default role only, got %+v", resp.Roles)
	}

	// Reading another user's roles needs user:read.
	bobTokens := env.login(t, "bob@example.com", "bob-pass")
	rr = env.do(t, http.MethodGet, "/v1/users/"+bob.ID+"/roles", bobTokens.AccessToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("without user:read: expected 403, got %d", rr.Code)
	}
}

func TestCatalogResourceAndActionListing(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin@example.com", "admin-pass")

	rr := env.do(t, http.MethodGet, "/v1/resources", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list resources: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var resources struct {
		Resources []string `json:"resources"`
	}
	decodeBody(t, rr, &resources)
	wantResources := []string{"api", "permission", "role", "system", "user"}
	if !reflect.DeepEqual(resources.Resources, wantResources) {
		t.Fatalf("resources = %v, want %v", resources.Resources, wantResources)
	}

	rr = env.do(t, http.MethodGet, "/v1/actions", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list actions: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var actions struct {
		Actions []string `json:"actions"`
	}
	decodeBody(t, rr, &actions)
	wantActions := []string{"manage", "monitor", "read"}
	if !reflect.DeepEqual(actions.Actions, wantActions) {
		t.Fatalf("actions = %v, want %v", actions.Actions, wantActions)
	}
}
