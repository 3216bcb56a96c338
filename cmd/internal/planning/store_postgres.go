package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the session entity graph in PostgreSQL.
//
// Per-key serialization strategy:
//   - votes: unique index on (venue_id, participant_id) + ON CONFLICT upsert
//   - session status: conditional UPDATE guarded on the expected status
//   - itinerary: the owning session row is locked FOR UPDATE inside one tx
//   - archival: FOR UPDATE SKIP LOCKED so concurrent sweeps never double-count
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
			return ErrValidation
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
		return nil, ErrValidation
	}
	return st, nil
}

// Close closes the store. The pool is owned by the app, so this is a no-op.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// storageErr wraps backend failures so callers can match ErrStorage and retry.
// Sentinel domain errors pass through untouched.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrValidation) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrDuplicate
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return storageErr(err)
}

// CreateSession inserts a session row.
func (s *PostgresStore) CreateSession(ctx context.Context, sess Session) error {
	if s == nil || s.pool == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(sess.ID) == "" {
		return ErrValidation
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("sessions")+` (id, name, organizer_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.Name, sess.OrganizerID, string(sess.Status), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (Session, error) {
	if s == nil || s.pool == nil {
		return Session{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	var out Session
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, organizer_id, status, created_at, updated_at
		   FROM `+s.table("sessions")+`
		  WHERE id = $1`,
		id,
	).Scan(&out.ID, &out.Name, &out.OrganizerID, &status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, storageErr(err)
	}
	out.Status, _ = ParseStatus(status)
	return out, nil
}

// UpdateSessionStatus performs a conditional status transition.
func (s *PostgresStore) UpdateSessionStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table("sessions")+`
		    SET status = $1, updated_at = $2
		  WHERE id = $3 AND status = $4`,
		string(to), now, id, string(from),
	)
	if err != nil {
		return false, storageErr(err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish a failed condition from a missing session.
	if _, err := s.GetSession(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CreateParticipant inserts a participant row.
func (s *PostgresStore) CreateParticipant(ctx context.Context, p Participant) error {
	if s == nil || s.pool == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table("participants")+` (id, session_id, display_name, is_organizer, joined_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.SessionID, p.DisplayName, p.IsOrganizer, p.JoinedAt,
		)
		if err != nil {
			return mapPGError(err)
		}
		return s.touchTx(ctx, tx, p.SessionID, p.JoinedAt)
	})
}

// GetParticipant fetches a participant within a session.
func (s *PostgresStore) GetParticipant(ctx context.Context, sessionID, participantID string) (Participant, error) {
	return s.scanParticipant(ctx,
		`SELECT id, session_id, display_name, is_organizer, joined_at
		   FROM `+s.table("participants")+`
		  WHERE session_id = $1 AND id = $2`,
		sessionID, participantID)
}

// FindParticipantByName fetches a participant by display name (case-insensitive).
func (s *PostgresStore) FindParticipantByName(ctx context.Context, sessionID, displayName string) (Participant, error) {
	return s.scanParticipant(ctx,
		`SELECT id, session_id, display_name, is_organizer, joined_at
		   FROM `+s.table("participants")+`
		  WHERE session_id = $1 AND lower(display_name) = lower($2)
		  ORDER BY joined_at
		  LIMIT 1`,
		sessionID, displayName)
}

func (s *PostgresStore) scanParticipant(ctx context.Context, sql string, args ...any) (Participant, error) {
	if s == nil || s.pool == nil {
		return Participant{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	var out Participant
	err := s.pool.QueryRow(ctx, sql, args...).Scan(
		&out.ID, &out.SessionID, &out.DisplayName, &out.IsOrganizer, &out.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, storageErr(err)
	}
	return out, nil
}

// ListParticipants returns members ordered by join time.
func (s *PostgresStore) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	if s == nil || s.pool == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, display_name, is_organizer, joined_at
		   FROM `+s.table("participants")+`
		  WHERE session_id = $1
		  ORDER BY joined_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.DisplayName, &p.IsOrganizer, &p.JoinedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// CreateVenue inserts a venue row.
func (s *PostgresStore) CreateVenue(ctx context.Context, v Venue) error {
	if s == nil || s.pool == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table("venues")+` (
			     id, session_id, place_ref, name, address, rating, price_level, photo_url, suggested_by, suggested_at
			   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			v.ID, v.SessionID, v.PlaceRef, v.Name, v.Address, v.Rating, v.PriceLevel, v.PhotoURL, v.SuggestedBy, v.SuggestedAt,
		)
		if err != nil {
			return mapPGError(err)
		}
		return s.touchTx(ctx, tx, v.SessionID, v.SuggestedAt)
	})
}

// GetVenue fetches a venue within a session.
func (s *PostgresStore) GetVenue(ctx context.Context, sessionID, venueID string) (Venue, error) {
	if s == nil || s.pool == nil {
		return Venue{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Venue{}, err
	}

	var out Venue
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, place_ref, name, address, rating, price_level, photo_url, suggested_by, suggested_at
		   FROM `+s.table("venues")+`
		  WHERE session_id = $1 AND id = $2`,
		sessionID, venueID,
	).Scan(&out.ID, &out.SessionID, &out.PlaceRef, &out.Name, &out.Address, &out.Rating, &out.PriceLevel, &out.PhotoURL, &out.SuggestedBy, &out.SuggestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Venue{}, ErrNotFound
		}
		return Venue{}, storageErr(err)
	}
	return out, nil
}

// ListVenues returns venue options in suggestion order.
func (s *PostgresStore) ListVenues(ctx context.Context, sessionID string) ([]Venue, error) {
	if s == nil || s.pool == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, place_ref, name, address, rating, price_level, photo_url, suggested_by, suggested_at
		   FROM `+s.table("venues")+`
		  WHERE session_id = $1
		  ORDER BY suggested_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.SessionID, &v.PlaceRef, &v.Name, &v.Address, &v.Rating, &v.PriceLevel, &v.PhotoURL, &v.SuggestedBy, &v.SuggestedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// UpsertVote creates or overwrites the vote keyed by (venue, participant).
// The unique index serializes concurrent casts on the same key; the later
// write wins and both callers observe a consistent stored row.
func (s *PostgresStore) UpsertVote(ctx context.Context, v Vote) (Vote, bool, error) {
	if s == nil || s.pool == nil {
		return Vote{}, false, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Vote{}, false, err
	}

	var (
		out      = v
		inserted bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// xmax = 0 distinguishes a fresh insert from a conflict-update.
		err := tx.QueryRow(ctx,
			`INSERT INTO `+s.table("votes")+` (id, session_id, venue_id, participant_id, kind, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (venue_id, participant_id)
			 DO UPDATE SET kind = EXCLUDED.kind, updated_at = EXCLUDED.updated_at
			 RETURNING id, created_at, (xmax = 0)`,
			v.ID, v.SessionID, v.VenueID, v.ParticipantID, string(v.Kind), v.CreatedAt, v.UpdatedAt,
		).Scan(&out.ID, &out.CreatedAt, &inserted)
		if err != nil {
			return mapPGError(err)
		}
		return s.touchTx(ctx, tx, v.SessionID, v.UpdatedAt)
	})
	if err != nil {
		return Vote{}, false, err
	}
	return out, inserted, nil
}

// ListVotesByVenue returns current votes for one venue.
func (s *PostgresStore) ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]Vote, error) {
	return s.listVotes(ctx,
		`SELECT id, session_id, venue_id, participant_id, kind, created_at, updated_at
		   FROM `+s.table("votes")+`
		  WHERE session_id = $1 AND venue_id = $2
		  ORDER BY id`,
		sessionID, venueID)
}

// ListVotesBySession returns all current votes in a session.
func (s *PostgresStore) ListVotesBySession(ctx context.Context, sessionID string) ([]Vote, error) {
	return s.listVotes(ctx,
		`SELECT id, session_id, venue_id, participant_id, kind, created_at, updated_at
		   FROM `+s.table("votes")+`
		  WHERE session_id = $1
		  ORDER BY id`,
		sessionID)
}

func (s *PostgresStore) listVotes(ctx context.Context, sql string, args ...any) ([]Vote, error) {
	if s == nil || s.pool == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Vote
	for rows.Next() {
		var (
			v    Vote
			kind string
		)
		if err := rows.Scan(&v.ID, &v.SessionID, &v.VenueID, &v.ParticipantID, &kind, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, storageErr(err)
		}
		v.Kind, _ = ParseVoteKind(kind)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// CreateComment inserts a comment row.
func (s *PostgresStore) CreateComment(ctx context.Context, c Comment) error {
	if s == nil || s.pool == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table("comments")+` (id, session_id, venue_id, participant_id, text, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.SessionID, c.VenueID, c.ParticipantID, c.Text, c.CreatedAt,
		)
		if err != nil {
			return mapPGError(err)
		}
		return s.touchTx(ctx, tx, c.SessionID, c.CreatedAt)
	})
}

// ListComments returns comments on a venue in append order.
func (s *PostgresStore) ListComments(ctx context.Context, sessionID, venueID string) ([]Comment, error) {
	if s == nil || s.pool == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, venue_id, participant_id, text, created_at
		   FROM `+s.table("comments")+`
		  WHERE session_id = $1 AND venue_id = $2
		  ORDER BY created_at, id`,
		sessionID, venueID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.SessionID, &c.VenueID, &c.ParticipantID, &c.Text, &c.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// AddItineraryItem appends an item with the next dense order index.
// The owning session row is locked so concurrent adds never share an index.
func (s *PostgresStore) AddItineraryItem(ctx context.Context, item ItineraryItem) (ItineraryItem, error) {
	if s == nil || s.pool == nil {
		return ItineraryItem{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return ItineraryItem{}, err
	}

	out := item
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.lockSessionTx(ctx, tx, item.SessionID); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0)
			   FROM `+s.table("itinerary_items")+`
			  WHERE session_id = $1`,
			item.SessionID,
		).Scan(&out.OrderIndex)
		if err != nil {
			return storageErr(err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO `+s.table("itinerary_items")+` (
			     id, session_id, venue_id, scheduled_at, order_index, added_by, added_at
			   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			out.ID, out.SessionID, out.VenueID, out.ScheduledAt, out.OrderIndex, out.AddedBy, out.AddedAt,
		)
		if err != nil {
			return mapPGError(err)
		}
		return s.touchTx(ctx, tx, item.SessionID, item.AddedAt)
	})
	if err != nil {
		return ItineraryItem{}, err
	}
	return out, nil
}

// RemoveItineraryItem deletes an item and re-numbers the remainder so indices
// stay a dense 0..n-1 permutation in relative order.
func (s *PostgresStore) RemoveItineraryItem(ctx context.Context, sessionID, itemID string, now time.Time) error {
	if s == nil || s.pool == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.lockSessionTx(ctx, tx, sessionID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM `+s.table("itinerary_items")+`
			  WHERE session_id = $1 AND id = $2`,
			sessionID, itemID,
		)
		if err != nil {
			return storageErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx,
			`WITH ranked AS (
			    SELECT id, ROW_NUMBER() OVER (ORDER BY order_index) - 1 AS rn
			      FROM `+s.table("itinerary_items")+`
			     WHERE session_id = $1
			 )
			 UPDATE `+s.table("itinerary_items")+` i
			    SET order_index = r.rn
			   FROM ranked r
			  WHERE i.id = r.id AND i.order_index <> r.rn`,
			sessionID,
		)
		if err != nil {
			return storageErr(err)
		}
		return s.touchTx(ctx, tx, sessionID, now)
	})
}

// ListItinerary returns items ordered by scheduled time ascending.
func (s *PostgresStore) ListItinerary(ctx context.Context, sessionID string) ([]ItineraryItem, error) {
	if s == nil || s.pool == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, venue_id, scheduled_at, order_index, added_by, added_at
		   FROM `+s.table("itinerary_items")+`
		  WHERE session_id = $1
		  ORDER BY scheduled_at, order_index`,
		sessionID,
	)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []ItineraryItem
	for rows.Next() {
		var item ItineraryItem
		if err := rows.Scan(&item.ID, &item.SessionID, &item.VenueID, &item.ScheduledAt, &item.OrderIndex, &item.AddedBy, &item.AddedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// ArchiveSessionsBefore transitions inactive sessions to archived.
// SKIP LOCKED lets concurrent sweeps divide the backlog instead of colliding;
// the re-checked WHERE clause makes each row transition exactly once.
func (s *PostgresStore) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time, limit int, now time.Time) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = 100
	}

	tag, err := s.pool.Exec(ctx,
		`WITH candidates AS (
		    SELECT id
		      FROM `+s.table("sessions")+`
		     WHERE status <> 'archived' AND updated_at < $1
		     ORDER BY updated_at
		     LIMIT $2
		       FOR UPDATE SKIP LOCKED
		 )
		 UPDATE `+s.table("sessions")+` s
		    SET status = 'archived', updated_at = $3
		   FROM candidates c
		  WHERE s.id = c.id AND s.status <> 'archived' AND s.updated_at < $1`,
		cutoff, limit, now,
	)
	if err != nil {
		return 0, storageErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// SessionStatusCounts returns the aggregate session counts by status.
func (s *PostgresStore) SessionStatusCounts(ctx context.Context) (StatusCounts, error) {
	if s == nil || s.pool == nil {
		return StatusCounts{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return StatusCounts{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM `+s.table("sessions")+` GROUP BY status`,
	)
	if err != nil {
		return StatusCounts{}, storageErr(err)
	}
	defer rows.Close()

	var out StatusCounts
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, storageErr(err)
		}
		switch Status(status) {
		case StatusActive:
			out.Active = count
		case StatusFinalized:
			out.Finalized = count
		case StatusArchived:
			out.Archived = count
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, storageErr(err)
	}
	return out, nil
}

// ---- tx helpers ----

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

// lockSessionTx takes the session row lock that serializes per-session writes.
func (s *PostgresStore) lockSessionTx(ctx context.Context, tx pgx.Tx, sessionID string) error {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM `+s.table("sessions")+` WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return storageErr(err)
	}
	return nil
}

// touchTx bumps the owning session's updated_at inside the caller's tx.
func (s *PostgresStore) touchTx(ctx context.Context, tx pgx.Tx, sessionID string, now time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE `+s.table("sessions")+` SET updated_at = $1 WHERE id = $2 AND updated_at < $1`,
		now, sessionID,
	)
	if err != nil {
		return storageErr(err)
	}
	return nil
}
