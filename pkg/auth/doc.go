/*
Package auth validates client tokens for the connection gateway.

The gateway sees only the Validator interface; token issuance lives outside
Relay. Two implementations ship with the daemon:

JWTValidator:
  - HMAC-signed JWTs (HS256 family) via golang-jwt
  - The subject claim becomes the user ID, a permissions claim carries roles
  - Rejects unsigned tokens, wrong keys, expired tokens and empty subjects

StaticValidator:
  - In-memory token registry with optional per-token expiry
  - Intended for tests and single-node deployments without an identity
    service

# Usage

	// Production
	v := auth.NewJWTValidator([]byte(cfg.Auth.JWTSecret))

	// Development
	v := auth.NewStaticValidator()
	v.Register("dev-token", "operator", []string{"admin"}, 0)

	identity, err := v.Validate(token)
	if err != nil {
		// always auth.ErrInvalidToken; clients see a stable error string
	}

Every validation failure is ErrInvalidToken. Callers never learn whether a
token was unknown, expired or tampered with.

# Thread Safety

Both validators are safe for concurrent use. JWTValidator is stateless;
StaticValidator guards its registry with an RWMutex.
*/
package auth
