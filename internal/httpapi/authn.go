package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"authgate.io/internal/auth"
	"authgate.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth gates every non-public route behind bearer-token
// verification. The principal carried downstream is the token's
// mint-time snapshot; no database round trip happens here. Every
// verification failure collapses to 401 at this boundary — the precise
// kind stays in logs and metrics, never in the response.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.RecordVerification("missing")
			unauthorized(w, r)
			return
		}

		claims, err := a.tokens.Verify(r.Context(), token)
		if err != nil {
			obs.RecordVerification(verificationResult(err))
			if errors.Is(err, auth.ErrUnavailable) {
				writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
				return
			}
			unauthorized(w, r)
			return
		}
		obs.RecordVerification("ok")

		ctx := auth.ContextWithPrincipal(r.Context(), auth.PrincipalFromClaims(claims))
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermission is the second-stage gate: exact-string membership in
// the principal's snapshot. Missing permission is 403, distinct from
// the 401 of failed authentication; the response does not say which
// permission was required.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return false
	}
	if !principal.HasPermission(perm) {
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
		writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer`)
	writeError(w, r, http.StatusUnauthorized, "unauthorized")
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, auth.ErrWrongTokenType):
		return "wrong_type"
	case errors.Is(err, auth.ErrUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
