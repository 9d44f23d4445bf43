package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserService implements self-service profile management and the admin
// directory. Deleting an identity closes all of its refresh sessions.
type UserService struct {
	repo     ports.IdentityRepository
	creds    *CredentialStore
	sessions *SessionRegistry
	now      func() time.Time
	logger   zerolog.Logger
}

var _ ports.UserService = (*UserService)(nil)

func NewUserService(repo ports.IdentityRepository, creds *CredentialStore, sessions *SessionRegistry, logger zerolog.Logger) *UserService {
	return &UserService{repo: repo, creds: creds, sessions: sessions, now: time.Now, logger: logger}
}

// UpdateMe applies name, email and avatar changes. Role is ignored.
func (s *UserService) UpdateMe(ctx context.Context, caller *domain.Identity, update domain.ProfileUpdate) (*domain.Identity, error) {
	update.Role = nil
	return s.update(ctx, caller.ID, update)
}

// ChangePassword requires the current password and a different new one.
func (s *UserService) ChangePassword(ctx context.Context, caller *domain.Identity, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.NewValidationError("old and new password are required")
	}
	if !s.creds.VerifyPassword(caller, oldPassword) {
		return domain.ErrInvalidCredentials
	}
	if oldPassword == newPassword {
		return domain.NewValidationError("new password must differ from the current one")
	}
	if err := s.creds.MutatePassword(ctx, caller, newPassword); err != nil {
		return err
	}
	s.logger.Info().Str("identity_id", caller.ID).Msg("password changed")
	return nil
}

func (s *UserService) DeleteMe(ctx context.Context, caller *domain.Identity) error {
	return s.Delete(ctx, caller.ID)
}

// List returns one page of identities. page is 1-based; limit is capped at 100.
func (s *UserService) List(ctx context.Context, page, limit int) (*ports.IdentityPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.IdentityPage{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// Update is the admin path and may change the role.
func (s *UserService) Update(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error) {
	if update.Role != nil && !update.Role.Valid() {
		return nil, domain.NewValidationError("role must be user or admin")
	}
	return s.update(ctx, id, update)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	n, err := s.sessions.CloseAll(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info().Str("identity_id", id).Int64("revoked_sessions", n).Msg("identity deleted")
	return nil
}

func (s *UserService) update(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, domain.NewValidationError("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Email != nil {
		email := domain.NormalizeEmail(*update.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		update.Email = &email
	}
	if update.AvatarURL != nil {
		avatar := strings.TrimSpace(*update.AvatarURL)
		update.AvatarURL = &avatar
	}
	if update.Empty() {
		return nil, domain.NewValidationError("no fields to update")
	}
	return s.repo.UpdateProfile(ctx, id, update, s.now().UTC())
}
