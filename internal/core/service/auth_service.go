package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
	"github.com/99minutos/auth-system/internal/pkg/metrics"
)

// AuthDeps wires AuthService. Every field is required.
type AuthDeps struct {
	Credentials *CredentialStore
	Sessions    *SessionRegistry
	Proofs      *ProofState
	Signer      ports.AccessSigner
	Notifier    ports.Notifier
	Mail        *MailTemplates
}

// AuthService implements registration, login and the token lifecycle flows.
type AuthService struct {
	creds    *CredentialStore
	sessions *SessionRegistry
	proofs   *ProofState
	signer   ports.AccessSigner
	notifier ports.Notifier
	mail     *MailTemplates
	logger   zerolog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(deps AuthDeps, logger zerolog.Logger) *AuthService {
	return &AuthService{
		creds:    deps.Credentials,
		sessions: deps.Sessions,
		proofs:   deps.Proofs,
		signer:   deps.Signer,
		notifier: deps.Notifier,
		mail:     deps.Mail,
		logger:   logger,
	}
}

// Register creates an unverified identity and queues its verification mail.
// A failure after the identity is stored is logged; the caller can resend.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
	identity, err := s.creds.Create(ctx, in.Email, in.Name, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate_email").Inc()
		} else if !errors.Is(err, domain.ErrValidation) {
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Str("identity_id", identity.ID).Str("email", identity.Email).Msg("identity registered")

	if _, err := s.sendVerification(ctx, identity); err != nil {
		s.logger.Error().Err(err).Str("identity_id", identity.ID).Msg("verification mail not queued")
	}
	return identity, nil
}

// Login returns the same ErrInvalidCredentials for an unknown email and a
// wrong password. Verification is only reported once the password matched.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}

	identity, err := s.creds.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	if !s.creds.VerifyPassword(identity, in.Password) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if !identity.Verified {
		metrics.LoginsTotal.WithLabelValues("not_verified").Inc()
		return nil, domain.ErrNotVerified
	}

	access, _, err := s.signer.Issue(identity.ID, identity.Role)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues("access").Inc()

	refresh, err := s.sessions.Open(ctx, identity.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := s.creds.RecordLogin(ctx, identity, in.ClientIP); err != nil {
		s.logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("record login failed")
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Str("identity_id", identity.ID).Msg("login succeeded")

	return &ports.LoginResult{
		AccessToken:      access,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		Identity:         identity,
	}, nil
}

// RenewAccessToken consumes refreshToken and returns a new access token plus
// the refresh token that replaces it.
func (s *AuthService) RenewAccessToken(ctx context.Context, refreshToken string) (*ports.RenewResult, error) {
	prev, err := s.sessions.Redeem(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
			return nil, domain.ErrInvalidOrExpiredSession
		}
		return nil, err
	}

	identity, err := s.creds.FindByID(ctx, prev.IdentityID)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, domain.ErrInvalidOrExpiredSession
	}
	if err != nil {
		return nil, fmt.Errorf("renew access token: %w", err)
	}

	access, _, err := s.signer.Issue(identity.ID, identity.Role)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues("access").Inc()

	next, err := s.sessions.Succeed(ctx, prev)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("identity_id", identity.ID).Msg("refresh token rotated")
	return &ports.RenewResult{
		AccessToken:      access,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Close(ctx, refreshToken)
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*ports.ProofIssued, error) {
	identity, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	tok, exp, err := s.proofs.IssueReset(ctx, identity)
	if err != nil {
		return nil, err
	}
	n, err := s.mail.Reset(identity, tok, s.proofs.resetTTL)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, identity, n)

	s.logger.Info().Str("identity_id", identity.ID).Msg("password reset requested")
	return &ports.ProofIssued{Token: tok, ExpiresAt: exp, Notification: n}, nil
}

// CompletePasswordReset replaces the password and ends every refresh session
// of the identity.
func (s *AuthService) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	identity, err := s.proofs.RedeemReset(ctx, resetToken, newPassword)
	if err != nil {
		return err
	}

	n, err := s.sessions.CloseAll(ctx, identity.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("identity_id", identity.ID).Msg("revoke sessions after reset failed")
	}
	s.logger.Info().Str("identity_id", identity.ID).Int64("revoked_sessions", n).Msg("password reset completed")
	return nil
}

func (s *AuthService) RequestEmailVerification(ctx context.Context, email string) (*ports.ProofIssued, error) {
	identity, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity.Verified {
		return nil, domain.ErrAlreadyVerified
	}
	return s.sendVerification(ctx, identity)
}

func (s *AuthService) CompleteEmailVerification(ctx context.Context, verifyToken string) error {
	identity, err := s.proofs.RedeemVerification(ctx, verifyToken)
	if err != nil {
		return err
	}
	s.logger.Info().Str("identity_id", identity.ID).Msg("email verified")
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, identity *domain.Identity) (*ports.ProofIssued, error) {
	tok, exp, err := s.proofs.IssueVerification(ctx, identity)
	if err != nil {
		return nil, err
	}
	n, err := s.mail.Verification(identity, tok, s.proofs.verificationTTL)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, identity, n)
	return &ports.ProofIssued{Token: tok, ExpiresAt: exp, Notification: n}, nil
}

// notify never fails the calling flow: the token is already stored and the
// user can ask for another mail.
func (s *AuthService) notify(ctx context.Context, identity *domain.Identity, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("identity_id", identity.ID).Str("subject", n.Subject).Msg("notification not queued")
	}
}
