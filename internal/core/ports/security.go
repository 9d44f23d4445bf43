package ports

import (
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// AccessClaims is what a verified access token asserts.
type AccessClaims struct {
	IdentityID string
	Role       domain.Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// AccessSigner mints and verifies stateless access tokens.
type AccessSigner interface {
	Issue(identityID string, role domain.Role) (token string, expiresAt time.Time, err error)
	// Verify returns domain.ErrTokenMalformed, domain.ErrTokenSignatureInvalid
	// or domain.ErrTokenExpired on failure.
	Verify(token string) (*AccessClaims, error)
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plaintext string) (domain.PasswordHash, error)
	Compare(hash domain.PasswordHash, plaintext string) bool
}

// OpaqueGenerator produces random single-purpose tokens and their storage hash.
type OpaqueGenerator interface {
	New() (token, hash string, err error)
	Hash(token string) string
}
