package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails validation. Callers
// surface the stable string "Invalid authentication token" to clients.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the result of a successful token validation
type Identity struct {
	UserID      string
	Permissions []string
}

// Validator checks client tokens against an identity source. The gateway
// only sees this interface; token issuance lives elsewhere.
type Validator interface {
	Validate(token string) (*Identity, error)
}

// JWTValidator validates HMAC-signed JWTs
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator creates a validator for tokens signed with the given key
func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{secret: secret}
}

type relayClaims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Validate parses and verifies the token, returning the subject as user ID
func (v *JWTValidator) Validate(token string) (*Identity, error) {
	claims := &relayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID:      claims.Subject,
		Permissions: claims.Permissions,
	}, nil
}

// StaticValidator validates against an in-memory token registry. Intended
// for tests and single-node deployments without an identity service.
type StaticValidator struct {
	mu     sync.RWMutex
	tokens map[string]*staticToken
}

type staticToken struct {
	identity  Identity
	expiresAt time.Time
}

// NewStaticValidator creates an empty token registry
func NewStaticValidator() *StaticValidator {
	return &StaticValidator{
		tokens: make(map[string]*staticToken),
	}
}

// Register adds a token for a user. A zero duration means no expiry.
func (v *StaticValidator) Register(token, userID string, permissions []string, ttl time.Duration) {
	entry := &staticToken{
		identity: Identity{UserID: userID, Permissions: permissions},
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	v.mu.Lock()
	v.tokens[token] = entry
	v.mu.Unlock()
}

// Revoke removes a token
func (v *StaticValidator) Revoke(token string) {
	v.mu.Lock()
	delete(v.tokens, token)
	v.mu.Unlock()
}

// Validate looks the token up and checks expiry
func (v *StaticValidator) Validate(token string) (*Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entry, exists := v.tokens[token]
	if !exists {
		return nil, ErrInvalidToken
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, ErrInvalidToken
	}

	identity := entry.identity
	return &identity, nil
}

// CleanupExpired removes expired tokens
func (v *StaticValidator) CleanupExpired() {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	for token, entry := range v.tokens {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(v.tokens, token)
		}
	}
}
