package auth

import "errors"

// Sentinel errors returned by the token service, codec, revocation store
// and RBAC administration. The HTTP layer maps these onto status codes;
// internally they stay distinct so callers can tell "log in again" from
// "refresh" from "tampered token".
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. Deliberately a single error so responses cannot be used
	// to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned for a deactivated account.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrInvalidToken indicates a malformed or otherwise unparseable token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a well-signed token past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrSignatureMismatch indicates the token signature does not verify
	// under the configured secret.
	ErrSignatureMismatch = errors.New("token signature mismatch")

	// ErrWrongTokenType indicates an access token presented where a
	// refresh token is required, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrTokenRevoked indicates the token's jti is blacklisted.
	ErrTokenRevoked = errors.New("token revoked")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable wraps persistence or revocation-store timeouts; it is
	// the only failure category safe to retry with backoff.
	ErrUnavailable = errors.New("store unavailable")
)
