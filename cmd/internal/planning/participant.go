package planning

import (
	"context"
	"errors"
	"strings"
	"time"

	"rally/cmd/identity/ids"
	v1 "rally/shared/contracts/planning/v1"
)

// JoinInput describes a join attempt via an invite token.
type JoinInput struct {
	Token       string
	DisplayName string
	Now         time.Time
}

// Joined is the result of a successful join.
type Joined struct {
	Participant Participant
	Session     Session
	// Rejoined is true when the same display name had already joined and the
	// existing record was returned instead of creating a duplicate.
	Rejoined bool
}

// Join admits a participant under a validated invite token.
//
// Token failures propagate the invite package's errors unchanged
// (invite.ErrNotFound, invite.ErrExpired, invite.ErrRevoked). A repeated join
// with the same display name is idempotent: the existing participant is
// returned and no event is emitted.
func (s *Service) Join(ctx context.Context, in JoinInput) (Joined, error) {
	if s == nil || s.store == nil || s.invites == nil {
		return Joined{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Joined{}, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" || len([]rune(displayName)) > maxDisplayNameChars {
		return Joined{}, ErrValidation
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}

	inv, err := s.invites.Validate(ctx, in.Token, now)
	if err != nil {
		return Joined{}, err
	}

	sess, err := s.activeSession(ctx, inv.SessionID)
	if err != nil {
		return Joined{}, err
	}

	existing, err := s.store.FindParticipantByName(ctx, sess.ID, displayName)
	switch {
	case err == nil:
		return Joined{Participant: existing, Session: sess, Rejoined: true}, nil
	case !errors.Is(err, ErrNotFound):
		// A failed lookup must not fall through to CreateParticipant: the
		// participant may exist, and the unique index would misreport a
		// transient storage failure as a duplicate join.
		return Joined{}, err
	}

	participantID, err := ids.NewULID(now)
	if err != nil {
		return Joined{}, err
	}

	p := Participant{
		ID:          participantID,
		SessionID:   sess.ID,
		DisplayName: displayName,
		IsOrganizer: false,
		JoinedAt:    now,
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return Joined{}, err
	}

	s.publish(sess.ID, v1.TypeParticipantJoined, v1.ParticipantJoinedPayload{
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		IsOrganizer:   false,
		JoinedAt:      p.JoinedAt,
	}, now)

	return Joined{Participant: p, Session: sess}, nil
}

// ListParticipants returns session members ordered by join time.
func (s *Service) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	if s == nil || s.store == nil {
		return nil, ErrValidation
	}
	if _, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID)); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, strings.TrimSpace(sessionID))
}

// IsMember reports whether participantID belongs to sessionID. The realtime
// gateway uses it as its authorization boundary before subscribing a
// connection.
func (s *Service) IsMember(ctx context.Context, sessionID, participantID string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrValidation
	}
	_, err := s.store.GetParticipant(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
