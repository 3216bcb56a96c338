package invite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists invites in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "rally").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "rally"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Create inserts a new invite record.
func (s *PostgresStore) Create(ctx context.Context, in CreateRecord) (Invite, error) {
	if s == nil || s.pool == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.TokenHash) == "" {
		return Invite{}, ErrInvalidInput
	}

	invites := pgIdent(s.schema, "invites")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+invites+` (id, session_id, token_hash, created_by, created_at, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL)`,
		in.ID, in.SessionID, in.TokenHash, in.CreatedBy, in.CreatedAt, in.ExpiresAt,
	)
	if err != nil {
		return Invite{}, err
	}

	return Invite{
		ID:        in.ID,
		SessionID: in.SessionID,
		CreatedBy: in.CreatedBy,
		CreatedAt: in.CreatedAt,
		ExpiresAt: in.ExpiresAt,
	}, nil
}

// GetByTokenHash fetches an invite by token hash.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	return s.get(ctx,
		`SELECT id, session_id, created_by, created_at, expires_at, revoked_at
		   FROM `+pgIdent(s.schema, "invites")+`
		  WHERE token_hash = $1`,
		strings.TrimSpace(tokenHash))
}

// GetBySession fetches the invite owned by a session.
func (s *PostgresStore) GetBySession(ctx context.Context, sessionID string) (Invite, error) {
	return s.get(ctx,
		`SELECT id, session_id, created_by, created_at, expires_at, revoked_at
		   FROM `+pgIdent(s.schema, "invites")+`
		  WHERE session_id = $1`,
		strings.TrimSpace(sessionID))
}

func (s *PostgresStore) get(ctx context.Context, sql, arg string) (Invite, error) {
	if s == nil || s.pool == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	if arg == "" {
		return Invite{}, ErrInvalidInput
	}

	var out Invite
	err := s.pool.QueryRow(ctx, sql, arg).Scan(
		&out.ID, &out.SessionID, &out.CreatedBy, &out.CreatedAt, &out.ExpiresAt, &out.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	return out, nil
}

// Revoke conditionally sets revoked_at iff it is still unset.
func (s *PostgresStore) Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	invites := pgIdent(s.schema, "invites")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+invites+`
		    SET revoked_at = $1
		  WHERE session_id = $2
		    AND revoked_at IS NULL`,
		now, sessionID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
