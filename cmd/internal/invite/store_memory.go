package invite

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used in dev mode and by tests.
type MemoryStore struct {
	mu        sync.Mutex
	byHash    map[string]Invite
	bySession map[string]string // session id -> token hash
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash:    make(map[string]Invite),
		bySession: make(map[string]string),
	}
}

// Create inserts a new invite record.
func (s *MemoryStore) Create(ctx context.Context, in CreateRecord) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.TokenHash) == "" {
		return Invite{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv := Invite{
		ID:        in.ID,
		SessionID: in.SessionID,
		CreatedBy: in.CreatedBy,
		CreatedAt: in.CreatedAt,
		ExpiresAt: in.ExpiresAt,
	}
	s.byHash[in.TokenHash] = inv
	s.bySession[in.SessionID] = in.TokenHash
	return inv, nil
}

// GetByTokenHash fetches an invite by token hash.
func (s *MemoryStore) GetByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byHash[strings.TrimSpace(tokenHash)]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

// GetBySession fetches the invite owned by a session.
func (s *MemoryStore) GetBySession(ctx context.Context, sessionID string) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.bySession[strings.TrimSpace(sessionID)]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return s.byHash[hash], nil
}

// Revoke conditionally sets revoked_at iff it is still unset.
func (s *MemoryStore) Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.bySession[strings.TrimSpace(sessionID)]
	if !ok {
		return false, nil
	}
	inv := s.byHash[hash]
	if inv.RevokedAt != nil {
		return false, nil
	}
	ts := now
	inv.RevokedAt = &ts
	s.byHash[hash] = inv
	return true, nil
}
