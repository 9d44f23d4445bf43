package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// IdentityRepository persists identity records. Every method is a single
// atomic write or read against one record.
type IdentityRepository interface {
	// Create inserts a new identity. Returns domain.ErrDuplicateEmail when the
	// normalized email is already taken.
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	List(ctx context.Context, page, limit int) ([]*domain.Identity, int64, error)

	// UpdateProfile applies the non-nil fields of update and returns the new record.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) (*domain.Identity, error)
	SetPasswordHash(ctx context.Context, id string, hash domain.PasswordHash, now time.Time) error
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error

	// SetProof unconditionally overwrites the token slot for purpose.
	SetProof(ctx context.Context, id string, purpose domain.ProofPurpose, token domain.ProofToken, now time.Time) error
	// ConsumeVerification atomically matches an unexpired verification token
	// hash, marks the identity verified and clears the slot. A miss returns
	// domain.ErrInvalidOrExpiredToken.
	ConsumeVerification(ctx context.Context, tokenHash string, now time.Time) (*domain.Identity, error)
	// ConsumeReset atomically matches an unexpired reset token hash, stores
	// hash as the new password hash and clears the slot.
	ConsumeReset(ctx context.Context, tokenHash string, hash domain.PasswordHash, now time.Time) (*domain.Identity, error)

	Delete(ctx context.Context, id string) error
}
