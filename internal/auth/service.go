package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Service orchestrates the codec, the revocation store and the
// permission resolver into the token lifecycle: login, refresh, logout
// and verification, plus registration and password changes.
type Service struct {
	store       Store
	revocations RevocationStore
	codec       *Codec
	now         func() time.Time

	accessTTL     time.Duration
	refreshTTL    time.Duration
	rotateRefresh bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithRefreshRotation toggles refresh-token rotation. Rotation is on by
// default: every refresh blacklists the presented token's jti so it
// cannot be replayed.
func WithRefreshRotation(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.rotateRefresh = enabled
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the token service.
func NewService(store Store, revocations RevocationStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if revocations == nil {
		return nil, errors.New("auth: revocation store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	svc := &Service{
		store:         store,
		revocations:   revocations,
		codec:         codec,
		now:           time.Now,
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		rotateRefresh: true,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a user with a hashed password and attaches the
// default role when it exists. Duplicate email or username surfaces as
// ErrConflict from the store.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	username := strings.TrimSpace(strings.ToLower(in.Username))
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Status:       userStatusActive,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return User{}, err
	}

	defaultRole, err := s.store.GetRoleByName(ctx, DefaultRoleName)
	switch {
	case err == nil:
		if _, err := s.store.AssignRole(ctx, user.ID, defaultRole.ID); err != nil {
			return User{}, err
		}
	case errors.Is(err, ErrNotFound):
		// No default role seeded; the account starts with no permissions.
	default:
		return User{}, err
	}
	return user, nil
}

// Login authenticates credentials and mints a token pair. Unknown email
// and wrong password return the identical ErrInvalidCredentials so the
// response shape cannot be used to enumerate accounts; a deactivated
// account is reported distinctly.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, Principal{}, err
	}
	if !user.Active() {
		return TokenPair{}, Principal{}, ErrAccountInactive
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.mintPair(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	// Last-login bookkeeping must not fail the login itself.
	_ = s.store.TouchLastLogin(ctx, user.ID)
	return pair, principal, nil
}

// Refresh exchanges a refresh token for a fresh pair. This is the only
// point where permissions are re-resolved from current role state; the
// access token minted here carries the updated snapshot. With rotation
// enabled the presented token's jti is consumed atomically: of two
// concurrent refreshes with the same token exactly one succeeds and the
// other observes ErrTokenRevoked. The burn happens after the user and
// role reads, so a transient store failure leaves the token spendable
// on retry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if claims.TokenType != string(TokenTypeRefresh) {
		return TokenPair{}, Principal{}, ErrWrongTokenType
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrInvalidToken
		}
		return TokenPair{}, Principal{}, err
	}
	if !user.Active() {
		return TokenPair{}, Principal{}, ErrAccountInactive
	}

	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	if s.rotateRefresh {
		first, err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			return TokenPair{}, Principal{}, err
		}
		if !first {
			return TokenPair{}, Principal{}, ErrTokenRevoked
		}
	} else {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return TokenPair{}, Principal{}, err
		}
		if revoked {
			return TokenPair{}, Principal{}, ErrTokenRevoked
		}
	}

	pair, err := s.mintPair(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Logout blacklists the presented tokens for the remainder of their
// lifetime. A token that has already expired is a no-op success: there is
// nothing left to revoke. The refresh token is optional.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.revokeToken(ctx, accessToken, TokenTypeAccess); err != nil {
		return err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.revokeToken(ctx, refreshToken, TokenTypeRefresh)
}

func (s *Service) revokeToken(ctx context.Context, token string, want TokenType) error {
	claims, err := s.codec.DecodeAllowExpired(token)
	if err != nil {
		return err
	}
	if claims.TokenType != string(want) {
		return ErrWrongTokenType
	}
	if !s.now().UTC().Before(claims.ExpiresAt.Time) {
		// Already expired; the codec rejects it everywhere anyway.
		return nil
	}
	_, err = s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	return err
}

// Verify decodes an access token and consults the revocation store. It
// returns the embedded claims snapshot; role changes made after mint are
// deliberately not visible here. Every protected endpoint depends on
// this operation.
func (s *Service) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != string(TokenTypeAccess) {
		return nil, ErrWrongTokenType
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// ChangePassword verifies the current password and stores a fresh hash.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.SetPasswordHash(ctx, user.ID, hash)
}

// Profile loads the user together with a principal resolved from current
// role state (not a token snapshot).
func (s *Service) Profile(ctx context.Context, userID string) (User, Principal, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, Principal{}, err
	}
	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return User{}, Principal{}, err
	}
	return user, principal, nil
}

func (s *Service) principalFor(ctx context.Context, user User) (Principal, error) {
	grants, err := s.store.ListRoleGrants(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	principal := NewPrincipal(user.ID, RoleNames(grants), Resolve(grants))
	principal.Email = user.Email
	principal.Username = user.Username
	return principal, nil
}

func (s *Service) mintPair(principal Principal) (TokenPair, error) {
	access, accessClaims, err := s.codec.Mint(principal.UserID, TokenTypeAccess, principal.Roles, principal.PermissionList(), s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshClaims, err := s.codec.Mint(principal.UserID, TokenTypeRefresh, nil, nil, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
