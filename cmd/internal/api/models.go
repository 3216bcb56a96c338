package api

import (
	"time"

	"rally/cmd/internal/planning"
)

// Wire shapes. Domain types carry no JSON tags; the API owns its contract.

type sessionResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OrganizerID string    `json:"organizer_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type participantResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	DisplayName string    `json:"display_name"`
	IsOrganizer bool      `json:"is_organizer"`
	JoinedAt    time.Time `json:"joined_at"`
}

type venueResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	PlaceRef    string    `json:"place_ref,omitempty"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	PriceLevel  *int      `json:"price_level,omitempty"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	SuggestedBy string    `json:"suggested_by"`
	SuggestedAt time.Time `json:"suggested_at"`
}

type voteResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	VenueID       string    `json:"venue_id"`
	ParticipantID string    `json:"participant_id"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type commentResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	VenueID       string    `json:"venue_id"`
	ParticipantID string    `json:"participant_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

type itineraryItemResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	VenueID     string    `json:"venue_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	OrderIndex  int       `json:"order_index"`
	AddedBy     string    `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
}

type ballotResponse struct {
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
}

type tallyResponse struct {
	Up      int              `json:"up"`
	Down    int              `json:"down"`
	Neutral int              `json:"neutral"`
	Total   int              `json:"total"`
	Score   int              `json:"score"`
	Ballots []ballotResponse `json:"ballots"`
}

type rankedVenueResponse struct {
	Rank  int           `json:"rank"`
	Venue venueResponse `json:"venue"`
	Tally tallyResponse `json:"tally"`
}

type createSessionRequest struct {
	Name           string `json:"name"`
	OrganizerName  string `json:"organizer_name"`
	InviteTTLHours int    `json:"invite_ttl_hours,omitempty"`
}

type createSessionResponse struct {
	Session     sessionResponse     `json:"session"`
	Organizer   participantResponse `json:"organizer"`
	InviteToken string              `json:"invite_token"`
	InviteURL   string              `json:"invite_url"`
	ExpiresAt   time.Time           `json:"invite_expires_at"`
}

type joinRequest struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
}

type joinResponse struct {
	Participant participantResponse `json:"participant"`
	Session     sessionResponse     `json:"session"`
	Rejoined    bool                `json:"rejoined"`
}

type addVenueRequest struct {
	ParticipantID string   `json:"participant_id"`
	PlaceRef      string   `json:"place_ref,omitempty"`
	Name          string   `json:"name"`
	Address       string   `json:"address,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	PriceLevel    *int     `json:"price_level,omitempty"`
	PhotoURL      *string  `json:"photo_url,omitempty"`
}

type castVoteRequest struct {
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
}

type addCommentRequest struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

type addItineraryItemRequest struct {
	ParticipantID string    `json:"participant_id"`
	VenueID       string    `json:"venue_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

type actorRequest struct {
	ParticipantID string `json:"participant_id"`
}

type finalizeResponse struct {
	Session      sessionResponse         `json:"session"`
	Participants []participantResponse   `json:"participants"`
	Itinerary    []itineraryItemResponse `json:"itinerary"`
	FinalizedAt  time.Time               `json:"finalized_at"`
}

type sweepRequest struct {
	InactiveDays int `json:"inactive_days,omitempty"`
}

type sweepResponse struct {
	Archived int `json:"archived"`
}

type archiveStatsResponse struct {
	Active    int `json:"active"`
	Finalized int `json:"finalized"`
	Archived  int `json:"archived"`
}

func toSession(s planning.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		OrganizerID: s.OrganizerID,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toParticipant(p planning.Participant) participantResponse {
	return participantResponse{
		ID:          p.ID,
		SessionID:   p.SessionID,
		DisplayName: p.DisplayName,
		IsOrganizer: p.IsOrganizer,
		JoinedAt:    p.JoinedAt,
	}
}

func toParticipants(ps []planning.Participant) []participantResponse {
	out := make([]participantResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toParticipant(p))
	}
	return out
}

func toVenue(v planning.Venue) venueResponse {
	return venueResponse{
		ID:          v.ID,
		SessionID:   v.SessionID,
		PlaceRef:    v.PlaceRef,
		Name:        v.Name,
		Address:     v.Address,
		Rating:      v.Rating,
		PriceLevel:  v.PriceLevel,
		PhotoURL:    v.PhotoURL,
		SuggestedBy: v.SuggestedBy,
		SuggestedAt: v.SuggestedAt,
	}
}

func toVenues(vs []planning.Venue) []venueResponse {
	out := make([]venueResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVenue(v))
	}
	return out
}

func toVote(v planning.Vote) voteResponse {
	return voteResponse{
		ID:            v.ID,
		SessionID:     v.SessionID,
		VenueID:       v.VenueID,
		ParticipantID: v.ParticipantID,
		Kind:          string(v.Kind),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func toComment(c planning.Comment) commentResponse {
	return commentResponse{
		ID:            c.ID,
		SessionID:     c.SessionID,
		VenueID:       c.VenueID,
		ParticipantID: c.ParticipantID,
		Text:          c.Text,
		CreatedAt:     c.CreatedAt,
	}
}

func toComments(cs []planning.Comment) []commentResponse {
	out := make([]commentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toComment(c))
	}
	return out
}

func toItineraryItem(it planning.ItineraryItem) itineraryItemResponse {
	return itineraryItemResponse{
		ID:          it.ID,
		SessionID:   it.SessionID,
		VenueID:     it.VenueID,
		ScheduledAt: it.ScheduledAt,
		OrderIndex:  it.OrderIndex,
		AddedBy:     it.AddedBy,
		AddedAt:     it.AddedAt,
	}
}

func toItinerary(items []planning.ItineraryItem) []itineraryItemResponse {
	out := make([]itineraryItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItineraryItem(it))
	}
	return out
}

func toTally(t planning.Tally) tallyResponse {
	ballots := make([]ballotResponse, 0, len(t.Ballots))
	for _, b := range t.Ballots {
		ballots = append(ballots, ballotResponse{ParticipantID: b.ParticipantID, Kind: string(b.Kind)})
	}
	return tallyResponse{
		Up:      t.Up,
		Down:    t.Down,
		Neutral: t.Neutral,
		Total:   t.Total,
		Score:   t.Score(),
		Ballots: ballots,
	}
}

func toRanking(rs []planning.RankedVenue) []rankedVenueResponse {
	out := make([]rankedVenueResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, rankedVenueResponse{Rank: r.Rank, Venue: toVenue(r.Venue), Tally: toTally(r.Tally)})
	}
	return out
}
