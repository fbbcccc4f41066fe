package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, subject string, permissions []string, expiresIn time.Duration) string {
	t.Helper()

	claims := relayClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestJWTValidator(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTValidator(secret)

	token := signToken(t, secret, "player-7", []string{"play", "chat"}, time.Hour)

	identity, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if identity.UserID != "player-7" {
		t.Errorf("UserID = %q, want player-7", identity.UserID)
	}
	if len(identity.Permissions) != 2 || identity.Permissions[0] != "play" {
		t.Errorf("Permissions = %v, want [play chat]", identity.Permissions)
	}
}

func TestJWTValidatorRejections(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTValidator(secret)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong key", signToken(t, []byte("other-secret"), "player-7", nil, time.Hour)},
		{"expired", signToken(t, secret, "player-7", nil, -time.Hour)},
		{"missing subject", signToken(t, secret, "", nil, time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Validate(tt.token); err == nil {
				t.Error("Validate() should reject the token")
			}
		})
	}
}

func TestJWTValidatorRejectsUnsignedAlg(t *testing.T) {
	v := NewJWTValidator([]byte("test-secret"))

	claims := jwt.RegisteredClaims{Subject: "player-7"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}

	if _, err := v.Validate(token); err == nil {
		t.Error("Validate() should reject alg=none tokens")
	}
}

func TestStaticValidator(t *testing.T) {
	v := NewStaticValidator()
	v.Register("token-1", "player-1", []string{"play"}, 0)

	identity, err := v.Validate("token-1")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if identity.UserID != "player-1" {
		t.Errorf("UserID = %q, want player-1", identity.UserID)
	}

	if _, err := v.Validate("unknown"); err == nil {
		t.Error("Validate() should reject unregistered tokens")
	}

	v.Revoke("token-1")
	if _, err := v.Validate("token-1"); err == nil {
		t.Error("Validate() should reject revoked tokens")
	}
}

func TestStaticValidatorExpiry(t *testing.T) {
	v := NewStaticValidator()
	v.Register("short", "player-1", nil, 10*time.Millisecond)

	if _, err := v.Validate("short"); err != nil {
		t.Fatalf("Validate() before expiry error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := v.Validate("short"); err == nil {
		t.Error("Validate() should reject expired tokens")
	}

	v.CleanupExpired()
	v.mu.RLock()
	_, present := v.tokens["short"]
	v.mu.RUnlock()
	if present {
		t.Error("CleanupExpired() should drop expired tokens")
	}
}
