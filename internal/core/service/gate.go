package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
)

type gate struct {
	signer ports.AccessSigner
	creds  *CredentialStore
	log    zerolog.Logger
}

// NewGate returns the request-time authentication and role guard.
func NewGate(signer ports.AccessSigner, creds *CredentialStore, log zerolog.Logger) ports.Gate {
	return &gate{signer: signer, creds: creds, log: log}
}

// Authenticate verifies the token and loads its identity with exactly one
// store lookup. Claims other than the subject are not trusted.
func (g *gate) Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims, err := g.signer.Verify(accessToken)
	if err != nil {
		g.log.Debug().Err(err).Msg("access token rejected")
		return nil, domain.ErrUnauthenticated
	}

	identity, err := g.creds.FindByID(ctx, claims.IdentityID)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return identity, nil
}

func (g *gate) AuthorizeAdmin(identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	if identity.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}
