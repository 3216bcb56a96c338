// Package invite manages session invite tokens: issuance, validation, and
// revocation. Tokens are unguessable (crypto/rand), stored hashed, and carry a
// caller-configured expiry. Validation never mutates state; only Issue and
// Revoke write.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"rally/cmd/identity/ids"
	"rally/cmd/security/token"
)

const (
	defaultTokenBytes = 32
	defaultTTL        = 24 * time.Hour
)

// Invite represents an invite row. The token itself is never stored; only its
// hash is, and the plain token is returned exactly once from Issue.
type Invite struct {
	ID        string
	SessionID string
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the invite has been permanently revoked.
func (i Invite) Revoked() bool { return i.RevokedAt != nil }

// IssueInput describes invite issuance at session creation.
type IssueInput struct {
	SessionID string
	CreatedBy string
	TTL       time.Duration
	Now       time.Time
}

// RevokeInput describes an invite revocation.
type RevokeInput struct {
	SessionID string
	Now       time.Time
}

// Service manages invite issuance, validation, and revocation.
type Service struct {
	store      Store
	tokenBytes int
}

// Option configures the Service.
type Option func(*Service) error

// WithTokenBytes sets the length of generated invite tokens in bytes.
func WithTokenBytes(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		s.tokenBytes = n
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, tokenBytes: defaultTokenBytes}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Issue creates the session's invite and returns it plus the plain token.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Invite, string, error) {
	if s == nil || s.store == nil {
		return Invite{}, "", ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, "", err
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return Invite{}, "", ErrInvalidInput
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	tokenPlain, err := newOpaqueToken(s.tokenBytes)
	if err != nil {
		return Invite{}, "", err
	}
	tokenHash := token.HashInviteTokenHex(tokenPlain)

	inviteID, err := ids.NewULID(now)
	if err != nil {
		return Invite{}, "", err
	}

	inv, err := s.store.Create(ctx, CreateRecord{
		ID:        inviteID,
		SessionID: sessionID,
		TokenHash: tokenHash,
		CreatedBy: strings.TrimSpace(in.CreatedBy),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return Invite{}, "", err
	}
	return inv, tokenPlain, nil
}

// Validate checks whether a token grants entry at the given time.
//
// Failure order matches the gate semantics: unknown token -> ErrNotFound,
// revoked -> ErrRevoked, expired -> ErrExpired. Validation is a pure read.
func (s *Service) Validate(ctx context.Context, tokenStr string, now time.Time) (Invite, error) {
	if s == nil || s.store == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Invite{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	inv, err := s.store.GetByTokenHash(ctx, token.HashInviteTokenHex(tokenStr))
	if err != nil {
		return Invite{}, err
	}

	if inv.Revoked() {
		return Invite{}, ErrRevoked
	}
	if !now.Before(inv.ExpiresAt) {
		return Invite{}, ErrExpired
	}
	return inv, nil
}

// Revoke permanently revokes the session's invite. Revoking an already-revoked
// invite is a no-op success. Role checks belong to the caller, which knows the
// session's organizer.
func (s *Service) Revoke(ctx context.Context, in RevokeInput) error {
	if s == nil || s.store == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return ErrInvalidInput
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	changed, err := s.store.Revoke(ctx, sessionID, now)
	if err != nil {
		return err
	}
	if changed {
		return nil
	}

	// Zero rows means either already revoked (fine) or no invite at all.
	if _, err := s.store.GetBySession(ctx, sessionID); err != nil {
		return err
	}
	return nil
}

// ForSession returns the session's invite record (hash excluded).
func (s *Service) ForSession(ctx context.Context, sessionID string) (Invite, error) {
	if s == nil || s.store == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Invite{}, ErrInvalidInput
	}
	return s.store.GetBySession(ctx, sessionID)
}

func newOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = defaultTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
