package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// SessionRepository persists refresh sessions keyed by the hash of their token.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.RefreshSession) error
	// Take atomically removes and returns the session with tokenHash, expired
	// or not. Returns domain.ErrSessionNotFound when nothing matches.
	Take(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	// DeleteByHash is idempotent.
	DeleteByHash(ctx context.Context, tokenHash string) error
	// DeleteByFamily removes every session rotated from the same login.
	DeleteByFamily(ctx context.Context, familyID string) (int64, error)
	DeleteByIdentity(ctx context.Context, identityID string) (int64, error)
}

// RotationLedger remembers refresh token hashes that were rotated away so a
// replay can be told apart from an unknown token.
type RotationLedger interface {
	MarkRotated(ctx context.Context, tokenHash string, rec domain.RotationRecord, ttl time.Duration) error
	// Rotated returns the owner and family of tokenHash when it was rotated away.
	Rotated(ctx context.Context, tokenHash string) (rec domain.RotationRecord, found bool, err error)
}
