package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCodecMintAndDecode(t *testing.T) {
	codec, err := NewCodec("test-secret", WithCodecIssuer("test-issuer"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	token, minted, err := codec.Mint("user-1", TokenTypeAccess, []string{"admin"}, []string{"user:read", "user:manage"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if minted.ExpiresAt.Time.Sub(minted.IssuedAt.Time) != time.Hour {
		t.Fatalf("expected exp-iat == 1h, got %v", minted.ExpiresAt.Time.Sub(minted.IssuedAt.Time))
	}
	if minted.ID == "" {
		t.Fatalf("expected non-empty jti")
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.TokenType != string(TokenTypeAccess) {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "user:read" {
		t.Fatalf("permissions were not preserved: %v", claims.Permissions)
	}
	if claims.ID != minted.ID {
		t.Fatalf("jti mismatch: %s vs %s", claims.ID, minted.ID)
	}
}

func TestCodecRefreshTokenDropsSnapshot(t *testing.T) {
	codec, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Mint("user-1", TokenTypeRefresh, []string{"admin"}, []string{"user:read"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(claims.Roles) != 0 || len(claims.Permissions) != 0 {
		t.Fatalf("refresh token must not carry a snapshot: roles=%v perms=%v", claims.Roles, claims.Permissions)
	}
	if claims.TokenType != string(TokenTypeRefresh) {
		t.Fatalf("unexpected token type: %s", claims.TokenType)
	}
}

func TestCodecExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	codec, err := NewCodec("test-secret", WithCodecClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Mint("user-1", TokenTypeAccess, nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	live, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := live.Decode(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	if _, err := live.DecodeAllowExpired(token); err != nil {
		t.Fatalf("DecodeAllowExpired should accept an expired token: %v", err)
	}
}

func TestCodecWrongSecret(t *testing.T) {
	a, _ := NewCodec("secret-a")
	b, _ := NewCodec("secret-b")

	token, _, err := a.Mint("user-1", TokenTypeAccess, nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := b.Decode(token); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestCodecMalformedToken(t *testing.T) {
	codec, _ := NewCodec("test-secret")
	for _, tok := range []string{"", "garbage", "a.b.c", "   "} {
		if _, err := codec.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestCodecRejectsNoneAlgorithm(t *testing.T) {
	codec, _ := NewCodec("test-secret")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		TokenType: string(TokenTypeAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "authgate",
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "jti-1",
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign unsecured token: %v", err)
	}
	if _, err := codec.Decode(token); err == nil {
		t.Fatalf("unsecured token must be rejected")
	}
}

func TestCodecRejectsTamperedPayload(t *testing.T) {
	codec, _ := NewCodec("test-secret")
	token, _, err := codec.Mint("user-1", TokenTypeAccess, nil, []string{"api:read"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := codec.Decode(tampered); err == nil {
		t.Fatalf("tampered payload must be rejected")
	}
}

func TestCodecMintValidation(t *testing.T) {
	codec, _ := NewCodec("test-secret")
	if _, _, err := codec.Mint("", TokenTypeAccess, nil, nil, time.Hour); err == nil {
		t.Fatalf("empty subject must be rejected")
	}
	if _, _, err := codec.Mint("user-1", TokenTypeAccess, nil, nil, 0); err == nil {
		t.Fatalf("zero ttl must be rejected")
	}
	if _, _, err := codec.Mint("user-1", TokenType("session"), nil, nil, time.Hour); err == nil {
		t.Fatalf("unknown token type must be rejected")
	}
}
