package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/99minutos/auth-system/internal/core/domain"
)

func TestGate_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.verifiedUser(t, "Alice", "a@x.com", "Password123")

	tok, _, err := env.signer.Issue(alice.ID, alice.Role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	env.ids.findByIDs = 0
	got, err := env.gate.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("unexpected identity %s", got.ID)
	}
	if env.ids.findByIDs != 1 {
		t.Fatalf("expected exactly one store lookup, got %d", env.ids.findByIDs)
	}
}

func TestGate_Authenticate_UsesStoredRole(t *testing.T) {
	env := newTestEnv(t)
	alice := env.verifiedUser(t, "Alice", "a@x.com", "Password123")
	tok, _, _ := env.signer.Issue(alice.ID, domain.RoleUser)

	admin := domain.RoleAdmin
	if _, err := env.ids.UpdateProfile(context.Background(), alice.ID, domain.ProfileUpdate{Role: &admin}, time.Now()); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, err := env.gate.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Role != domain.RoleAdmin {
		t.Fatalf("expected role from store, got %s", got.Role)
	}
}

func TestGate_Authenticate_Failures(t *testing.T) {
	env := newTestEnv(t)
	alice := env.verifiedUser(t, "Alice", "a@x.com", "Password123")
	ctx := context.Background()

	valid, _, _ := env.signer.Issue(alice.ID, alice.Role)
	ghost, _, _ := env.signer.Issue("id-404", domain.RoleUser)

	cases := map[string]string{
		"missing":   "",
		"malformed": "garbage",
		"tampered":  valid + "x",
		"unknown":   ghost,
	}
	for name, tok := range cases {
		if _, err := env.gate.Authenticate(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	env.clock.Advance(16 * time.Minute)
	if _, err := env.gate.Authenticate(ctx, valid); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expired: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGate_AuthorizeAdmin(t *testing.T) {
	env := newTestEnv(t)

	if err := env.gate.AuthorizeAdmin(&domain.Identity{Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if err := env.gate.AuthorizeAdmin(&domain.Identity{Role: domain.RoleUser}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("user: expected ErrForbidden, got %v", err)
	}
	if err := env.gate.AuthorizeAdmin(nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("nil: expected ErrUnauthenticated, got %v", err)
	}
}
