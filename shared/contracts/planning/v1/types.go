package v1

import "time"

// ---- Event payloads ----

// ParticipantJoinedPayload is broadcast when a join commits.
type ParticipantJoinedPayload struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	IsOrganizer   bool      `json:"is_organizer"`
	JoinedAt      time.Time `json:"joined_at"`
}

// ParticipantLeftPayload is broadcast when a live connection drops.
type ParticipantLeftPayload struct {
	ParticipantID string `json:"participant_id"`
}

// VenueAddedPayload is broadcast when a venue option is suggested.
type VenueAddedPayload struct {
	VenueID     string    `json:"venue_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	SuggestedBy string    `json:"suggested_by"`
	SuggestedAt time.Time `json:"suggested_at"`
}

// VoteCastPayload is broadcast when a vote is created or updated.
type VoteCastPayload struct {
	VenueID       string `json:"venue_id"`
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
}

// CommentAddedPayload is broadcast when a comment is appended.
type CommentAddedPayload struct {
	CommentID     string    `json:"comment_id"`
	VenueID       string    `json:"venue_id"`
	ParticipantID string    `json:"participant_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// ItineraryUpdatedPayload is broadcast for any itinerary add/remove.
type ItineraryUpdatedPayload struct {
	Action  string `json:"action"` // "added" or "removed"
	ItemID  string `json:"item_id"`
	VenueID string `json:"venue_id,omitempty"`
}

// SessionFinalizedPayload is broadcast when the organizer locks the plan.
type SessionFinalizedPayload struct {
	FinalizedBy string    `json:"finalized_by"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
