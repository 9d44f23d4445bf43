package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
	"github.com/99minutos/auth-system/internal/pkg/metrics"
)

const (
	DefaultVerificationTTL = time.Hour
	DefaultResetTTL        = 15 * time.Minute
)

// ProofState issues and redeems the one-time verification and reset tokens
// that live on the identity record. Issuing overwrites the previous token of
// the same purpose; redeeming clears it in the same write.
type ProofState struct {
	repo            ports.IdentityRepository
	creds           *CredentialStore
	tokens          ports.OpaqueGenerator
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

func NewProofState(
	repo ports.IdentityRepository,
	creds *CredentialStore,
	tokens ports.OpaqueGenerator,
	verificationTTL, resetTTL time.Duration,
) *ProofState {
	if verificationTTL <= 0 {
		verificationTTL = DefaultVerificationTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &ProofState{
		repo:            repo,
		creds:           creds,
		tokens:          tokens,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		now:             time.Now,
	}
}

func (p *ProofState) IssueVerification(ctx context.Context, identity *domain.Identity) (string, time.Time, error) {
	return p.issue(ctx, identity, domain.PurposeVerification, p.verificationTTL)
}

func (p *ProofState) IssueReset(ctx context.Context, identity *domain.Identity) (string, time.Time, error) {
	return p.issue(ctx, identity, domain.PurposeReset, p.resetTTL)
}

func (p *ProofState) issue(ctx context.Context, identity *domain.Identity, purpose domain.ProofPurpose, ttl time.Duration) (string, time.Time, error) {
	tok, hash, err := p.tokens.New()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	proof := domain.ProofToken{TokenHash: hash, ExpiresAt: now.Add(ttl)}
	if err := p.repo.SetProof(ctx, identity.ID, purpose, proof, now); err != nil {
		return "", time.Time{}, fmt.Errorf("issue %s token: %w", purpose, err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(purpose)).Inc()
	return tok, proof.ExpiresAt, nil
}

// RedeemVerification marks the owner of token verified.
func (p *ProofState) RedeemVerification(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	identity, err := p.repo.ConsumeVerification(ctx, p.tokens.Hash(token), p.now().UTC())
	return p.redeemed(domain.PurposeVerification, identity, err)
}

// RedeemReset replaces the password of the owner of token.
func (p *ProofState) RedeemReset(ctx context.Context, token, newPassword string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	identity, err := p.creds.RedeemReset(ctx, p.tokens.Hash(token), newPassword)
	return p.redeemed(domain.PurposeReset, identity, err)
}

func (p *ProofState) redeemed(purpose domain.ProofPurpose, identity *domain.Identity, err error) (*domain.Identity, error) {
	switch {
	case err == nil:
		metrics.TokenRedemptionsTotal.WithLabelValues(string(purpose), "success").Inc()
		return identity, nil
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		metrics.TokenRedemptionsTotal.WithLabelValues(string(purpose), "not_found").Inc()
		return nil, err
	default:
		return nil, fmt.Errorf("redeem %s token: %w", purpose, err)
	}
}
