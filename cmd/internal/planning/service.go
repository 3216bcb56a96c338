package planning

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"rally/cmd/identity/ids"
	"rally/cmd/internal/invite"
	v1 "rally/shared/contracts/planning/v1"
)

const (
	maxSessionNameChars = 120
	maxDisplayNameChars = 80
	maxCommentChars     = 2000
)

// Publisher delivers committed session events to live connections.
// The realtime hub implements it; tests use a capture fake.
type Publisher interface {
	Publish(sessionID string, env v1.Envelope)
}

// Service exposes the planning domain operations on top of a Store.
type Service struct {
	store   Store
	invites *invite.Service
	bus     Publisher
	clock   func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithPublisher sets the event bus used for fan-out after committed writes.
func WithPublisher(bus Publisher) Option {
	return func(s *Service) error {
		s.bus = bus
		return nil
	}
}

// WithClock injects the time source (tests simulate time passage with it).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) error {
		if clock == nil {
			return ErrValidation
		}
		s.clock = clock
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, invites *invite.Service, opts ...Option) (*Service, error) {
	if store == nil || invites == nil {
		return nil, ErrValidation
	}
	s := &Service{
		store:   store,
		invites: invites,
		clock:   func() time.Time { return time.Now().UTC() },
	}
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

// CreateSessionInput describes session creation.
type CreateSessionInput struct {
	Name          string
	OrganizerName string
	InviteTTL     time.Duration
	Now           time.Time
}

// CreatedSession is the result of CreateSession. InviteToken is the plain
// invite token, shown exactly once; only its hash is stored.
type CreatedSession struct {
	Session     Session
	Organizer   Participant
	Invite      invite.Invite
	InviteToken string
}

// CreateSession creates a session, its organizer participant, and the invite
// token in one operation. The organizer is the only participant with
// IsOrganizer set, fixed for the session's lifetime.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (CreatedSession, error) {
	if s == nil || s.store == nil {
		return CreatedSession{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return CreatedSession{}, err
	}

	name := strings.TrimSpace(in.Name)
	organizerName := strings.TrimSpace(in.OrganizerName)
	if name == "" || len([]rune(name)) > maxSessionNameChars {
		return CreatedSession{}, ErrValidation
	}
	if organizerName == "" || len([]rune(organizerName)) > maxDisplayNameChars {
		return CreatedSession{}, ErrValidation
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}

	sessionID, err := ids.NewULID(now)
	if err != nil {
		return CreatedSession{}, err
	}
	organizerID, err := ids.NewULID(now)
	if err != nil {
		return CreatedSession{}, err
	}

	sess := Session{
		ID:          sessionID,
		Name:        name,
		OrganizerID: organizerID,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return CreatedSession{}, err
	}

	organizer := Participant{
		ID:          organizerID,
		SessionID:   sessionID,
		DisplayName: organizerName,
		IsOrganizer: true,
		JoinedAt:    now,
	}
	if err := s.store.CreateParticipant(ctx, organizer); err != nil {
		return CreatedSession{}, err
	}

	inv, tokenPlain, err := s.invites.Issue(ctx, invite.IssueInput{
		SessionID: sessionID,
		CreatedBy: organizerID,
		TTL:       in.InviteTTL,
		Now:       now,
	})
	if err != nil {
		return CreatedSession{}, err
	}

	return CreatedSession{
		Session:     sess,
		Organizer:   organizer,
		Invite:      inv,
		InviteToken: tokenPlain,
	}, nil
}

// GetSession fetches a session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if s == nil || s.store == nil {
		return Session{}, ErrValidation
	}
	return s.store.GetSession(ctx, strings.TrimSpace(sessionID))
}

// RevokeInviteInput describes an invite revocation.
type RevokeInviteInput struct {
	SessionID   string
	RequestedBy string
	Now         time.Time
}

// RevokeInvite permanently revokes the session's invite token. Organizer only;
// revoking twice is a no-op success. Participants already joined are unaffected.
func (s *Service) RevokeInvite(ctx context.Context, in RevokeInviteInput) error {
	if s == nil || s.store == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := s.store.GetSession(ctx, strings.TrimSpace(in.SessionID))
	if err != nil {
		return err
	}
	if strings.TrimSpace(in.RequestedBy) != sess.OrganizerID {
		return ErrUnauthorized
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}
	return s.invites.Revoke(ctx, invite.RevokeInput{SessionID: sess.ID, Now: now})
}

// FinalizeInput describes a finalize request.
type FinalizeInput struct {
	SessionID   string
	RequestedBy string
	Now         time.Time
}

// Finalize locks the plan: organizer only, only from active. The conditional
// status write makes concurrent finalize attempts race safely; the loser gets
// ErrInvalidTransition.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (Summary, error) {
	if s == nil || s.store == nil {
		return Summary{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	sess, err := s.store.GetSession(ctx, strings.TrimSpace(in.SessionID))
	if err != nil {
		return Summary{}, err
	}
	if strings.TrimSpace(in.RequestedBy) != sess.OrganizerID {
		return Summary{}, ErrUnauthorized
	}
	if sess.Status != StatusActive {
		return Summary{}, ErrInvalidTransition
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}

	ok, err := s.store.UpdateSessionStatus(ctx, sess.ID, StatusActive, StatusFinalized, now)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{}, ErrInvalidTransition
	}
	sess.Status = StatusFinalized
	sess.UpdatedAt = now

	participants, err := s.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		return Summary{}, err
	}
	itinerary, err := s.store.ListItinerary(ctx, sess.ID)
	if err != nil {
		return Summary{}, err
	}

	s.publish(sess.ID, v1.TypeSessionFinalized, v1.SessionFinalizedPayload{
		FinalizedBy: sess.OrganizerID,
		FinalizedAt: now,
	}, now)

	return Summary{
		Session:      sess,
		Participants: participants,
		Itinerary:    itinerary,
		FinalizedAt:  now,
	}, nil
}

// AddVenueInput describes a venue suggestion.
type AddVenueInput struct {
	SessionID   string
	PlaceRef    string
	Name        string
	Address     string
	Rating      *float64
	PriceLevel  *int
	PhotoURL    *string
	SuggestedBy string
	Now         time.Time
}

// AddVenue records a venue option suggested by a session member.
func (s *Service) AddVenue(ctx context.Context, in AddVenueInput) (Venue, error) {
	if s == nil || s.store == nil {
		return Venue{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Venue{}, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Venue{}, ErrValidation
	}

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return Venue{}, err
	}
	if _, err := s.member(ctx, sess.ID, in.SuggestedBy); err != nil {
		return Venue{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}
	venueID, err := ids.NewULID(now)
	if err != nil {
		return Venue{}, err
	}

	v := Venue{
		ID:          venueID,
		SessionID:   sess.ID,
		PlaceRef:    strings.TrimSpace(in.PlaceRef),
		Name:        name,
		Address:     strings.TrimSpace(in.Address),
		Rating:      in.Rating,
		PriceLevel:  in.PriceLevel,
		PhotoURL:    in.PhotoURL,
		SuggestedBy: strings.TrimSpace(in.SuggestedBy),
		SuggestedAt: now,
	}
	if err := s.store.CreateVenue(ctx, v); err != nil {
		return Venue{}, err
	}

	s.publish(sess.ID, v1.TypeVenueAdded, v1.VenueAddedPayload{
		VenueID:     v.ID,
		Name:        v.Name,
		Address:     v.Address,
		SuggestedBy: v.SuggestedBy,
		SuggestedAt: v.SuggestedAt,
	}, now)

	return v, nil
}

// ListVenues returns the session's venue options in suggestion order.
func (s *Service) ListVenues(ctx context.Context, sessionID string) ([]Venue, error) {
	if s == nil || s.store == nil {
		return nil, ErrValidation
	}
	if _, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID)); err != nil {
		return nil, err
	}
	return s.store.ListVenues(ctx, strings.TrimSpace(sessionID))
}

// AddCommentInput describes a comment append.
type AddCommentInput struct {
	SessionID     string
	VenueID       string
	ParticipantID string
	Text          string
	Now           time.Time
}

// AddComment appends a comment to a venue. Comments are never mutated or
// reordered after creation.
func (s *Service) AddComment(ctx context.Context, in AddCommentInput) (Comment, error) {
	if s == nil || s.store == nil {
		return Comment{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" || len([]rune(text)) > maxCommentChars {
		return Comment{}, ErrValidation
	}

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return Comment{}, err
	}
	if _, err := s.member(ctx, sess.ID, in.ParticipantID); err != nil {
		return Comment{}, err
	}
	if _, err := s.store.GetVenue(ctx, sess.ID, strings.TrimSpace(in.VenueID)); err != nil {
		return Comment{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}
	commentID, err := ids.NewULID(now)
	if err != nil {
		return Comment{}, err
	}

	c := Comment{
		ID:            commentID,
		SessionID:     sess.ID,
		VenueID:       strings.TrimSpace(in.VenueID),
		ParticipantID: strings.TrimSpace(in.ParticipantID),
		Text:          text,
		CreatedAt:     now,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return Comment{}, err
	}

	s.publish(sess.ID, v1.TypeCommentAdded, v1.CommentAddedPayload{
		CommentID:     c.ID,
		VenueID:       c.VenueID,
		ParticipantID: c.ParticipantID,
		Text:          c.Text,
		CreatedAt:     c.CreatedAt,
	}, now)

	return c, nil
}

// ListComments returns a venue's comments in append order.
func (s *Service) ListComments(ctx context.Context, sessionID, venueID string) ([]Comment, error) {
	if s == nil || s.store == nil {
		return nil, ErrValidation
	}
	if _, err := s.store.GetVenue(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(venueID)); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(venueID))
}

// ---- shared guards ----

// activeSession loads the session and rejects mutations against closed ones.
func (s *Service) activeSession(ctx context.Context, sessionID string) (Session, error) {
	sess, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return Session{}, err
	}
	switch sess.Status {
	case StatusFinalized:
		return Session{}, ErrSessionFinalized
	case StatusArchived:
		return Session{}, ErrSessionArchived
	}
	return sess, nil
}

// member resolves participantID within the session, mapping absence to
// ErrUnauthorized: only members may mutate session state.
func (s *Service) member(ctx context.Context, sessionID, participantID string) (Participant, error) {
	p, err := s.store.GetParticipant(ctx, sessionID, strings.TrimSpace(participantID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Participant{}, ErrUnauthorized
		}
		return Participant{}, err
	}
	return p, nil
}

// publish emits a session event after the mutation committed. A nil bus is
// allowed (tests, maintenance commands).
func (s *Service) publish(sessionID, typ string, payload any, ts time.Time) {
	if s.bus == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	id, _ := ids.NewULID(ts)
	s.bus.Publish(sessionID, v1.Envelope{
		V:         v1.Version,
		Type:      typ,
		ID:        id,
		SessionID: sessionID,
		TS:        ts,
		Data:      data,
	})
}
