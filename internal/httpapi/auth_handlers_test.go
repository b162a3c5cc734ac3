package httpapi

import (
	"net/http"
	"testing"

	"authgate.io/internal/auth"
)

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "carol@example.com",
		"username": "carol",
		"password": "carol-pass",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var created auth.User
	decodeBody(t, rr, &created)
	if created.PasswordHash != "" {
		t.Fatalf("password hash must never serialize")
	}

	pair := env.login(t, "carol@example.com", "carol-pass")

	rr = env.do(t, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var me struct {
		User        auth.User `json:"user"`
		Permissions []string  `json:"permissions"`
	}
	decodeBody(t, rr, &me)
	if me.User.Email != "carol@example.com" {
		t.Fatalf("unexpected profile %+v", me.User)
	}
	if len(me.Permissions) != 1 || me.Permissions[0] != auth.PermAPIRead {
		t.Fatalf("default role must grant api:read, got %v", me.Permissions)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "bob@example.com",
		"username": "bob2",
		"password": "pass",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rr.Code)
	}

	rr2 := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong",
	})
	if rr2.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", rr2.Code)
	}
}

func TestLoginUnknownFieldRejected(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": "bob-pass",
		"extra":    "field",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRefreshEndpointRotates(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	decodeBody(t, rr, &resp)
	if resp.Tokens.AccessToken == "" || resp.Tokens.AccessToken == pair.AccessToken {
		t.Fatalf("expected a fresh access token")
	}

	// The consumed refresh token cannot be replayed.
	rr = env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", rr.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodPost, "/v1/auth/logout", pair.AccessToken, map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rr.Code)
	}
}

func TestLogoutRejectsBadRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodPost, "/v1/auth/logout", pair.AccessToken, map[string]string{
		"refresh_token": "not-a-jwt",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("garbage refresh token: expected 400, got %d (%s)", rr.Code, rr.Body.String())
	}

	pair = env.login(t, "bob@example.com", "bob-pass")
	rr = env.do(t, http.MethodPost, "/v1/auth/logout", pair.AccessToken, map[string]string{
		"refresh_token": pair.AccessToken,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("access token in refresh field: expected 400, got %d (%s)", rr.Code, rr.Body.String())
	}

	// The body field is optional, leaving it out still logs out.
	pair = env.login(t, "bob@example.com", "bob-pass")
	rr = env.do(t, http.MethodPost, "/v1/auth/logout", pair.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout without refresh token: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodPost, "/v1/auth/change-password", pair.AccessToken, map[string]string{
		"old_password": "wrong",
		"new_password": "next-pass",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: expected 401, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/auth/change-password", pair.AccessToken, map[string]string{
		"old_password": "bob-pass",
		"new_password": "next-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	env.login(t, "bob@example.com", "next-pass")
}

func TestSelfProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodPut, "/v1/auth/me", pair.AccessToken, map[string]string{
		"first_name": "Bob",
		"last_name":  "Builder",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("profile update: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var user auth.User
	decodeBody(t, rr, &user)
	if user.FirstName != "Bob" || user.LastName != "Builder" {
		t.Fatalf("unexpected profile after update: %+v", user)
	}

	// No self-service status changes.
	rr = env.do(t, http.MethodPut, "/v1/auth/me", pair.AccessToken, map[string]string{
		"status": "disabled",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status via self update: expected 400, got %d", rr.Code)
	}
}

func TestVerifyTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "bob@example.com", "bob-pass")

	rr := env.do(t, http.MethodGet, "/v1/auth/verify-token", pair.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-token: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp struct {
		Valid       bool     `json:"valid"`
		UserID      string   `json:"user_id"`
		Permissions []string `json:"permissions"`
	}
	decodeBody(t, rr, &resp)
	if !resp.Valid || resp.UserID == "" {
		t.Fatalf("unexpected verify-token payload: %+v", resp)
	}
	found := false
	for _, p := range resp.Permissions {
		if p == auth.PermAPIRead {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in claims, got %v", auth.PermAPIRead, resp.Permissions)
	}

	rr = env.do(t, http.MethodGet, "/v1/auth/verify-token", pair.RefreshToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token as bearer: expected 401, got %d", rr.Code)
	}
}
