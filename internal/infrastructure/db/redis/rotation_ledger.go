package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/auth-system/internal/core/domain"
)

const (
	fieldIdentity = "identity_id"
	fieldFamily   = "family_id"
)

// RotationLedger remembers refresh token hashes that were rotated away.
// Key format: refresh:rotated:<token_hash>, a hash holding identity_id and
// family_id. Entries expire when the rotated session would have.
type RotationLedger struct {
	client *redis.Client
}

// NewRotationLedger creates a RotationLedger wrapping the given Redis client.
func NewRotationLedger(client *redis.Client) *RotationLedger {
	return &RotationLedger{client: client}
}

// MarkRotated is a no-op for a non-positive ttl; the token can no longer be
// presented as valid anyway.
func (l *RotationLedger) MarkRotated(ctx context.Context, tokenHash string, rec domain.RotationRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := l.key(tokenHash)
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldIdentity, rec.IdentityID, fieldFamily, rec.FamilyID)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark rotated: %w", err)
	}
	return nil
}

func (l *RotationLedger) Rotated(ctx context.Context, tokenHash string) (domain.RotationRecord, bool, error) {
	fields, err := l.client.HGetAll(ctx, l.key(tokenHash)).Result()
	if err != nil {
		return domain.RotationRecord{}, false, fmt.Errorf("rotated lookup: %w", err)
	}
	if len(fields) == 0 {
		return domain.RotationRecord{}, false, nil
	}
	return domain.RotationRecord{IdentityID: fields[fieldIdentity], FamilyID: fields[fieldFamily]}, true, nil
}

func (l *RotationLedger) key(tokenHash string) string {
	return "refresh:rotated:" + tokenHash
}
