package invite

import (
	"context"
	"time"
)

// CreateRecord is a normalized invite insert payload.
type CreateRecord struct {
	ID        string
	SessionID string
	TokenHash string
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the persistence boundary for invites.
type Store interface {
	Create(ctx context.Context, in CreateRecord) (Invite, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (Invite, error)
	GetBySession(ctx context.Context, sessionID string) (Invite, error)
	// Revoke conditionally sets revoked_at iff it is still unset. It returns
	// false without error when the invite was already revoked, so the service
	// can keep revocation idempotent.
	Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error)
}
