package planning

import (
	"strings"
	"time"
)

// Status is the session lifecycle state.
// Transitions only move forward: active -> finalized -> archived, or
// active -> archived directly. Archived is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusFinalized Status = "finalized"
	StatusArchived  Status = "archived"
)

// ParseStatus converts a stored label to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, true
	case StatusFinalized:
		return StatusFinalized, true
	case StatusArchived:
		return StatusArchived, true
	default:
		return "", false
	}
}

// VoteKind is the ballot value a participant puts on a venue.
type VoteKind string

const (
	VoteUp      VoteKind = "up"
	VoteDown    VoteKind = "down"
	VoteNeutral VoteKind = "neutral"
)

// ParseVoteKind converts a wire label to a VoteKind.
func ParseVoteKind(s string) (VoteKind, bool) {
	switch VoteKind(strings.ToLower(strings.TrimSpace(s))) {
	case VoteUp:
		return VoteUp, true
	case VoteDown:
		return VoteDown, true
	case VoteNeutral:
		return VoteNeutral, true
	default:
		return "", false
	}
}

// Session is a venue-planning session.
// OrganizerID is the organizer's participant id, fixed at creation.
type Session struct {
	ID          string
	Name        string
	OrganizerID string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Participant is a session member. Records are immutable after creation and
// only removed by cascading session deletion. Exactly one participant per
// session has IsOrganizer set, matching Session.OrganizerID.
type Participant struct {
	ID          string
	SessionID   string
	DisplayName string
	IsOrganizer bool
	JoinedAt    time.Time
}

// Venue is a suggested venue option. Immutable after creation except through
// votes and comments referencing it.
type Venue struct {
	ID          string
	SessionID   string
	PlaceRef    string
	Name        string
	Address     string
	Rating      *float64
	PriceLevel  *int
	PhotoURL    *string
	SuggestedBy string
	SuggestedAt time.Time
}

// Vote is a participant's current ballot on a venue. At most one vote exists
// per (session, venue, participant); repeated casts update in place.
type Vote struct {
	ID            string
	SessionID     string
	VenueID       string
	ParticipantID string
	Kind          VoteKind
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Comment is an append-only remark on a venue.
type Comment struct {
	ID            string
	SessionID     string
	VenueID       string
	ParticipantID string
	Text          string
	CreatedAt     time.Time
}

// ItineraryItem is a scheduled venue selection. OrderIndex values within a
// session are a dense 0..n-1 permutation; the canonical listing is
// chronological by ScheduledAt.
type ItineraryItem struct {
	ID          string
	SessionID   string
	VenueID     string
	ScheduledAt time.Time
	OrderIndex  int
	AddedBy     string
	AddedAt     time.Time
}

// Ballot is one (participant, kind) pair inside a Tally.
type Ballot struct {
	ParticipantID string
	Kind          VoteKind
}

// Tally is the vote aggregate for one venue.
type Tally struct {
	Up      int
	Down    int
	Neutral int
	Total   int
	Ballots []Ballot
}

// Score is upvotes minus downvotes.
func (t Tally) Score() int { return t.Up - t.Down }

// RankedVenue is one row of the session ranking.
type RankedVenue struct {
	Venue Venue
	Tally Tally
	Rank  int // 1-based position
}

// StatusCounts is the aggregate used by archival stats.
type StatusCounts struct {
	Active    int
	Finalized int
	Archived  int
}

// Summary is the immutable snapshot produced by finalize.
type Summary struct {
	Session      Session
	Participants []Participant
	Itinerary    []ItineraryItem
	FinalizedAt  time.Time
}
