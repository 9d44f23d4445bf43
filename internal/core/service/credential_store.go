package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
)

// Password bounds apply to every path that sets a password. bcrypt rejects
// inputs over 72 bytes, so the upper bound counts bytes, not characters.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// dummyPassword is hashed once and compared against when the email is unknown
// so that both login failure paths cost one bcrypt comparison.
const dummyPassword = "dummy-password-for-timing"

// CredentialStore owns identity persistence and is the only place a plaintext
// password is turned into a PasswordHash before it reaches the repository.
type CredentialStore struct {
	repo   ports.IdentityRepository
	hasher ports.PasswordHasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash domain.PasswordHash
}

func NewCredentialStore(repo ports.IdentityRepository, hasher ports.PasswordHasher) *CredentialStore {
	return &CredentialStore{repo: repo, hasher: hasher, now: time.Now}
}

// Create registers a new unverified identity with the default role.
func (c *CredentialStore) Create(ctx context.Context, email, name, plaintext string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if err := validatePassword(plaintext); err != nil {
		return nil, err
	}

	hash, err := c.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	created, err := c.repo.Create(ctx, &domain.Identity{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return created, nil
}

func (c *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return c.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
}

func (c *CredentialStore) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return c.repo.FindByID(ctx, id)
}

// VerifyPassword compares plaintext against the identity's hash. A nil
// identity is compared against a throwaway hash and always fails.
func (c *CredentialStore) VerifyPassword(identity *domain.Identity, plaintext string) bool {
	if identity == nil || identity.PasswordHash == "" {
		c.hasher.Compare(c.dummy(), plaintext)
		return false
	}
	return c.hasher.Compare(identity.PasswordHash, plaintext)
}

// MutatePassword hashes newPlaintext and persists it. The hash is written
// before MutatePassword returns.
func (c *CredentialStore) MutatePassword(ctx context.Context, identity *domain.Identity, newPlaintext string) error {
	if err := validatePassword(newPlaintext); err != nil {
		return err
	}
	hash, err := c.hasher.Hash(newPlaintext)
	if err != nil {
		return err
	}
	if err := c.repo.SetPasswordHash(ctx, identity.ID, hash, c.now().UTC()); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	identity.PasswordHash = hash
	return nil
}

// RedeemReset hashes newPlaintext and swaps it in only if tokenHash still
// names an active reset token.
func (c *CredentialStore) RedeemReset(ctx context.Context, tokenHash, newPlaintext string) (*domain.Identity, error) {
	if err := validatePassword(newPlaintext); err != nil {
		return nil, err
	}
	hash, err := c.hasher.Hash(newPlaintext)
	if err != nil {
		return nil, err
	}
	return c.repo.ConsumeReset(ctx, tokenHash, hash, c.now().UTC())
}

// RecordLogin stamps the last login time and origin on identity.
func (c *CredentialStore) RecordLogin(ctx context.Context, identity *domain.Identity, ip string) error {
	now := c.now().UTC()
	if err := c.repo.RecordLogin(ctx, identity.ID, ip, now); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	identity.LastLoginAt = now
	identity.LastLoginIP = ip
	return nil
}

func (c *CredentialStore) dummy() domain.PasswordHash {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash(dummyPassword)
	})
	return c.dummyHash
}

func validatePassword(p string) error {
	if len(p) < MinPasswordLength {
		return domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(p) > MaxPasswordBytes {
		return domain.NewValidationError(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if email == "" || at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return domain.NewValidationError("a valid email is required")
	}
	return nil
}
