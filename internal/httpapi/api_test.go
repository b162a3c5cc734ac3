package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate.io/internal/auth"
)

type testEnv struct {
	api   *API
	store *auth.MemoryStore
}

// newTestEnv builds the API on an in-memory store seeded with the
// service catalog, an admin role holding every key, the default role
// holding api:read, and one account per role.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := auth.NewMemoryStore()

	catalog := []string{
		auth.PermUserRead, auth.PermUserManage,
		auth.PermRoleRead, auth.PermRoleManage,
		auth.PermPermissionRead, auth.PermPermissionManage,
		auth.PermAPIRead, auth.PermSystemMonitor,
	}
	for _, key := range catalog {
		resource, action, err := auth.SplitPermissionKey(key)
		if err != nil {
			t.Fatalf("SplitPermissionKey %s: %v", key, err)
		}
		perm := auth.Permission{Resource: resource, Action: action}
		if err := store.CreatePermission(ctx, &perm); err != nil {
			t.Fatalf("CreatePermission %s: %v", key, err)
		}
	}

	admin := auth.Role{Name: "admin"}
	if err := store.CreateRole(ctx, &admin); err != nil {
		t.Fatalf("CreateRole admin: %v", err)
	}
	if err := store.SetRolePermissions(ctx, admin.ID, catalog); err != nil {
		t.Fatalf("SetRolePermissions admin: %v", err)
	}

	user := auth.Role{Name: auth.DefaultRoleName}
	if err := store.CreateRole(ctx, &user); err != nil {
		t.Fatalf("CreateRole user: %v", err)
	}
	if err := store.SetRolePermissions(ctx, user.ID, []string{auth.PermAPIRead}); err != nil {
		t.Fatalf("SetRolePermissions user: %v", err)
	}

	codec, err := auth.NewCodec("httpapi-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	tokens, err := auth.NewService(store, auth.NewMemoryRevocations(), codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}

	env := &testEnv{
		api:   New(tokens, rbac, ReadyProbe{}, "test"),
		store: store,
	}

	adminUser, err := tokens.Register(ctx, auth.RegisterInput{
		Email:    "admin@example.com",
		Username: "admin",
		Password: "admin-pass",
	})
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	if err := store.ReplaceUserRoles(ctx, adminUser.ID, []string{admin.ID}); err != nil {
		t.Fatalf("ReplaceUserRoles: %v", err)
	}
	if _, err := tokens.Register(ctx, auth.RegisterInput{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "bob-pass",
	}); err != nil {
		t.Fatalf("Register bob: %v", err)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, email, password string) auth.TokenPair {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Tokens
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
