package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
	"github.com/99minutos/auth-system/internal/pkg/metrics"
)

// DefaultRefreshTTL is the lifetime of a refresh session.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// SessionRegistry opens, redeems and closes refresh sessions. Refresh tokens
// are single use: Redeem removes the session, and Succeed opens its
// replacement in the same family.
type SessionRegistry struct {
	repo   ports.SessionRepository
	ledger ports.RotationLedger
	tokens ports.OpaqueGenerator
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewSessionRegistry accepts a nil ledger, which disables reuse detection.
func NewSessionRegistry(
	repo ports.SessionRepository,
	ledger ports.RotationLedger,
	tokens ports.OpaqueGenerator,
	ttl time.Duration,
	log zerolog.Logger,
) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &SessionRegistry{repo: repo, ledger: ledger, tokens: tokens, ttl: ttl, now: time.Now, log: log}
}

// Open starts a new session family for identityID.
func (r *SessionRegistry) Open(ctx context.Context, identityID string) (*domain.IssuedSession, error) {
	return r.open(ctx, identityID, uuid.NewString())
}

// Succeed opens the replacement for a session that Redeem just consumed.
func (r *SessionRegistry) Succeed(ctx context.Context, prev *domain.RefreshSession) (*domain.IssuedSession, error) {
	family := prev.FamilyID
	if family == "" {
		family = uuid.NewString()
	}
	return r.open(ctx, prev.IdentityID, family)
}

func (r *SessionRegistry) open(ctx context.Context, identityID, familyID string) (*domain.IssuedSession, error) {
	tok, hash, err := r.tokens.New()
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	sess := &domain.RefreshSession{
		IdentityID: identityID,
		FamilyID:   familyID,
		TokenHash:  hash,
		ExpiresAt:  now.Add(r.ttl),
		CreatedAt:  now,
	}
	if err := r.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	return &domain.IssuedSession{Token: tok, ExpiresAt: sess.ExpiresAt}, nil
}

// Redeem consumes token. It returns domain.ErrSessionNotFound for unknown or
// already used tokens and domain.ErrSessionExpired for expired ones; an expired
// session is removed either way. Presenting a token that was already rotated
// away closes every session of its family.
func (r *SessionRegistry) Redeem(ctx context.Context, token string) (*domain.RefreshSession, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	hash := r.tokens.Hash(token)

	sess, err := r.repo.Take(ctx, hash)
	if errors.Is(err, domain.ErrSessionNotFound) {
		r.detectReuse(ctx, hash)
		metrics.TokenRedemptionsTotal.WithLabelValues("refresh", "not_found").Inc()
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redeem session: %w", err)
	}

	now := r.now().UTC()
	if sess.ExpiredAt(now) {
		metrics.TokenRedemptionsTotal.WithLabelValues("refresh", "expired").Inc()
		return nil, domain.ErrSessionExpired
	}

	if r.ledger != nil {
		rec := domain.RotationRecord{IdentityID: sess.IdentityID, FamilyID: sess.FamilyID}
		if err := r.ledger.MarkRotated(ctx, hash, rec, sess.ExpiresAt.Sub(now)); err != nil {
			r.log.Warn().Err(err).Str("identity_id", sess.IdentityID).Msg("rotation ledger write failed")
		}
	}
	metrics.TokenRedemptionsTotal.WithLabelValues("refresh", "success").Inc()
	return sess, nil
}

// detectReuse revokes the family of a token that was already rotated away.
// Other logins of the same identity are left alone.
func (r *SessionRegistry) detectReuse(ctx context.Context, hash string) {
	if r.ledger == nil {
		return
	}
	rec, found, err := r.ledger.Rotated(ctx, hash)
	if err != nil {
		r.log.Warn().Err(err).Msg("rotation ledger lookup failed")
		return
	}
	if !found {
		return
	}

	var n int64
	if rec.FamilyID != "" {
		n, err = r.CloseFamily(ctx, rec.FamilyID)
	} else {
		n, err = r.CloseAll(ctx, rec.IdentityID)
	}
	if err != nil {
		r.log.Error().Err(err).Str("identity_id", rec.IdentityID).Msg("revoke family after refresh reuse failed")
		return
	}
	metrics.TokenRedemptionsTotal.WithLabelValues("refresh", "reused").Inc()
	metrics.RefreshReuseRevocationsTotal.Add(float64(n))
	r.log.Warn().
		Str("identity_id", rec.IdentityID).
		Str("family_id", rec.FamilyID).
		Int64("revoked", n).
		Msg("refresh token reuse detected")
}

// Close ends the session for token. Unknown tokens are not an error.
func (r *SessionRegistry) Close(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := r.repo.DeleteByHash(ctx, r.tokens.Hash(token)); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// CloseFamily ends every session rotated from the same login.
func (r *SessionRegistry) CloseFamily(ctx context.Context, familyID string) (int64, error) {
	n, err := r.repo.DeleteByFamily(ctx, familyID)
	if err != nil {
		return 0, fmt.Errorf("close family: %w", err)
	}
	return n, nil
}

// CloseAll ends every session of identityID and returns how many were removed.
func (r *SessionRegistry) CloseAll(ctx context.Context, identityID string) (int64, error) {
	n, err := r.repo.DeleteByIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("close sessions: %w", err)
	}
	return n, nil
}
