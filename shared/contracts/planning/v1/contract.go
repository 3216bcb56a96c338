// Package v1 defines the Rally planning event protocol.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire format authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Event type constants (wire-stable).
const (
	// TypeParticipantJoined announces a new session member.
	TypeParticipantJoined = "participant_joined"
	// TypeParticipantLeft is a presence signal for a dropped connection.
	// Membership is unaffected; the participant record remains.
	TypeParticipantLeft = "participant_left"

	// TypeVenueAdded announces a new venue option.
	TypeVenueAdded = "venue_added"
	// TypeVoteCast announces a created or updated vote.
	TypeVoteCast = "vote_cast"
	// TypeCommentAdded announces an appended comment.
	TypeCommentAdded = "comment_added"
	// TypeItineraryUpdated announces any itinerary add/remove.
	TypeItineraryUpdated = "itinerary_updated"

	// TypeSessionFinalized announces the session plan is locked.
	TypeSessionFinalized = "session_finalized"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper for session events.
//
// Delivery contract: at-most-once per connection per event; ordering is
// guaranteed within a single session only. Reconnecting clients must re-fetch
// state over HTTP and then resume live updates.
type Envelope struct {
	V         string          `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	TS        time.Time       `json:"ts,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeParticipantJoined,
		TypeParticipantLeft,
		TypeVenueAdded,
		TypeVoteCast,
		TypeCommentAdded,
		TypeItineraryUpdated,
		TypeSessionFinalized,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}
