package httpapi

import (
	"errors"
	"net/http"

	"authgate.io/internal/auth"
	"authgate.io/internal/obs"
)

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type tokenResponse struct {
	TokenType string          `json:"token_type"`
	Tokens    auth.TokenPair  `json:"tokens"`
	User      principalDetail `json:"user"`
}

type principalDetail struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func principalDetailFrom(p auth.Principal) principalDetail {
	return principalDetail{
		ID:          p.UserID,
		Email:       p.Email,
		Username:    p.Username,
		Roles:       p.Roles,
		Permissions: p.PermissionList(),
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.tokens.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.registered", "user", user.ID, map[string]any{
		"email": user.Email,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.tokens.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.RecordLogin("invalid_credentials")
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrAccountInactive):
			obs.RecordLogin("inactive")
			writeError(w, r, http.StatusForbidden, "account is not active")
		case errors.Is(err, auth.ErrUnavailable):
			obs.RecordLogin("unavailable")
			writeError(w, r, http.StatusServiceUnavailable, "store unavailable, retry later")
		default:
			obs.RecordLogin("error")
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}
	obs.RecordLogin("ok")
	a.audit(r.Context(), "auth.login", "user", principal.UserID, nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		TokenType: "Bearer",
		Tokens:    pair,
		User:      principalDetailFrom(principal),
	})
}

// handleRefresh trades a refresh token for a fresh pair. Roles and
// permissions are re-resolved here, so revoked grants take effect on
// the next rotation even while outstanding access tokens still carry
// the old snapshot.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, principal, err := a.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, r, http.StatusUnauthorized, "refresh token has expired")
		case errors.Is(err, auth.ErrTokenRevoked):
			writeError(w, r, http.StatusUnauthorized, "refresh token has been revoked")
		case errors.Is(err, auth.ErrWrongTokenType):
			writeError(w, r, http.StatusUnauthorized, "token is not a refresh token")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSignatureMismatch):
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, auth.ErrAccountInactive):
			writeError(w, r, http.StatusForbidden, "account is not active")
		case errors.Is(err, auth.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "store unavailable, retry later")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	a.audit(r.Context(), "auth.refresh", "user", principal.UserID, nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		TokenType: "Bearer",
		Tokens:    pair,
		User:      principalDetailFrom(principal),
	})
}

// handleLogout blacklists the caller's access token plus the refresh
// token from the body. Already-expired tokens are a no-op, so logout
// never fails on a stale session.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	accessToken, _ := auth.TokenFromContext(r.Context())
	if err := a.tokens.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrSignatureMismatch),
			errors.Is(err, auth.ErrWrongTokenType):
			writeError(w, r, http.StatusBadRequest, "refresh_token is not a valid refresh token")
		case errors.Is(err, auth.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "store unavailable, retry later")
		default:
			writeError(w, r, http.StatusInternalServerError, "logout failed")
		}
		return
	}
	obs.RecordRevocation()
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		a.audit(r.Context(), "auth.logout", "user", principal.UserID, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

type selfUpdateRequest struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, live, err := a.tokens.Profile(r.Context(), principal.UserID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":        user,
			"roles":       live.Roles,
			"permissions": live.PermissionList(),
		})
	case http.MethodPut:
		// Self-service update. Status is deliberately absent from the
		// request shape: nobody disables or re-enables themselves here.
		var req selfUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), principal.UserID, auth.UserUpdate{
			Email:     req.Email,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.audit(r.Context(), "user.profile_updated", "user", user.ID, nil)
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// handleVerifyToken answers "is this token good right now". Reaching the
// handler already means the bearer passed verification, so this echoes
// the claims back for callers that introspect rather than trust locally.
func (a *API) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	claims, err := a.tokens.Verify(r.Context(), token)
	if err != nil {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       true,
		"user_id":     claims.Subject,
		"roles":       claims.Roles,
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt.Time,
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.tokens.ChangePassword(r.Context(), principal.UserID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "user.password_changed", "user", principal.UserID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}
