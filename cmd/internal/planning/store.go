package planning

import (
	"context"
	"time"
)

// Store is the persistence boundary for the session entity graph.
//
// Requirements:
//   - UpsertVote is atomic per (venue_id, participant_id): concurrent casts
//     never produce two rows; the later write wins.
//   - UpdateSessionStatus is a conditional write: it reports false without
//     error when the session is no longer in the expected state.
//   - AddItineraryItem and RemoveItineraryItem serialize per session so order
//     indices stay a dense 0..n-1 permutation.
//   - Child mutations bump the owning session's updated_at in the same
//     logical write (the inactivity scan keys off it).
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// UpdateSessionStatus transitions id from "from" to "to" iff the current
	// status still equals "from". Returns false when the condition failed.
	UpdateSessionStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error)

	CreateParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, sessionID, participantID string) (Participant, error)
	// FindParticipantByName is used for idempotent re-joins.
	FindParticipantByName(ctx context.Context, sessionID, displayName string) (Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]Participant, error)

	CreateVenue(ctx context.Context, v Venue) error
	GetVenue(ctx context.Context, sessionID, venueID string) (Venue, error)
	ListVenues(ctx context.Context, sessionID string) ([]Venue, error)

	// UpsertVote creates or overwrites the vote keyed by (venue, participant).
	// On overwrite the stored row keeps its original ID and CreatedAt.
	// Returns the stored vote and whether a new row was created.
	UpsertVote(ctx context.Context, v Vote) (Vote, bool, error)
	ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]Vote, error)
	ListVotesBySession(ctx context.Context, sessionID string) ([]Vote, error)

	CreateComment(ctx context.Context, c Comment) error
	ListComments(ctx context.Context, sessionID, venueID string) ([]Comment, error)

	// AddItineraryItem assigns the next dense order index (max+1, or 0).
	AddItineraryItem(ctx context.Context, item ItineraryItem) (ItineraryItem, error)
	// RemoveItineraryItem deletes the item and re-compacts order indices,
	// preserving the relative order of remaining items.
	RemoveItineraryItem(ctx context.Context, sessionID, itemID string, now time.Time) error
	ListItinerary(ctx context.Context, sessionID string) ([]ItineraryItem, error)

	// ArchiveSessionsBefore conditionally transitions up to limit sessions
	// with status != archived and updated_at < cutoff. Lost races are skipped,
	// not errors. Returns the count actually transitioned.
	ArchiveSessionsBefore(ctx context.Context, cutoff time.Time, limit int, now time.Time) (int, error)
	SessionStatusCounts(ctx context.Context) (StatusCounts, error)

	Close() error
}
