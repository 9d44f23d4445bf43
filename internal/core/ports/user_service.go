package ports

import (
	"context"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// IdentityPage is one page of the admin listing.
type IdentityPage struct {
	Items      []*domain.Identity
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UserService covers profile management for the caller and for admins.
type UserService interface {
	UpdateMe(ctx context.Context, caller *domain.Identity, update domain.ProfileUpdate) (*domain.Identity, error)
	ChangePassword(ctx context.Context, caller *domain.Identity, oldPassword, newPassword string) error
	DeleteMe(ctx context.Context, caller *domain.Identity) error

	List(ctx context.Context, page, limit int) (*IdentityPage, error)
	Get(ctx context.Context, id string) (*domain.Identity, error)
	Update(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error)
	Delete(ctx context.Context, id string) error
}
