package ports

import (
	"context"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// RegisterInput carries the self-service registration fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries credentials plus the client origin recorded on success.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// LoginResult is returned once per successful login.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	Identity         *domain.Identity
}

// RenewResult carries the new access token and the rotated refresh token.
type RenewResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// ProofIssued is returned by the request-* flows: the plaintext token and the
// notification that was queued for delivery.
type ProofIssued struct {
	Token        string
	ExpiresAt    time.Time
	Notification domain.Notification
}

// AuthService is the boundary the HTTP layer drives for token lifecycle flows.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Identity, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	RenewAccessToken(ctx context.Context, refreshToken string) (*RenewResult, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (*ProofIssued, error)
	CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error
	RequestEmailVerification(ctx context.Context, email string) (*ProofIssued, error)
	CompleteEmailVerification(ctx context.Context, verifyToken string) error
}

// Gate authenticates access tokens and authorizes roles.
type Gate interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error)
	AuthorizeAdmin(identity *domain.Identity) error
}
