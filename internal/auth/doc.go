// Package auth provides authentication for notebox: password credentials,
// signed bearer tokens, logout revocation, and the per-request gate.
//
// # Tokens
//
// TokenService issues HS256 JWTs whose subject is the username:
//
//	svc, err := auth.NewTokenService(secret, 24*time.Hour)
//	token, err := svc.Issue("alice")
//	username, err := svc.Verify(token)
//
// Verify distinguishes ErrInvalidToken (bad signature or shape) from
// ErrExpiredToken (valid signature, past expiry). The secret must be at
// least 32 bytes and is never logged; neither are tokens.
//
// # Revocation
//
// Logout records the raw token in a Revocations store until the token's own
// expiry, after which the expiry check rejects it anyway:
//
//   - MemoryRevocations: mutex-guarded map with a background sweeper
//   - RedisRevocations: shared across instances, keyed by SHA-256 of the token
//
// # Gate
//
// Gate.Middleware runs once per request:
//
//  1. missing or non-Bearer Authorization header: ReasonMalformedHeader (400)
//  2. token fails verification: ReasonInvalidToken (401)
//  3. token revoked: ReasonRevoked (401)
//  4. subject has no account: ReasonUnknownSubject (401)
//
// Every 401 carries the same body so clients cannot tell the reasons apart.
// The reason is logged and available to tests through *RejectionError.
// On success the Identity is attached to the request context:
//
//	id := auth.MustFromContext(r.Context())
//
// # Accounts
//
// Accounts implements register, login, and logout. Passwords are hashed with
// bcrypt; a login for an unknown user still runs a comparison so response
// timing does not reveal which usernames exist.
package auth
