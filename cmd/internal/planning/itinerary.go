package planning

import (
	"context"
	"strings"
	"time"

	"rally/cmd/identity/ids"
	v1 "rally/shared/contracts/planning/v1"
)

// AddItineraryItemInput describes an itinerary append.
type AddItineraryItemInput struct {
	SessionID   string
	VenueID     string
	ScheduledAt time.Time
	AddedBy     string
	Now         time.Time
}

// AddItineraryItem appends a scheduled venue selection with the next dense
// order index. The venue must belong to the session.
func (s *Service) AddItineraryItem(ctx context.Context, in AddItineraryItemInput) (ItineraryItem, error) {
	if s == nil || s.store == nil {
		return ItineraryItem{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return ItineraryItem{}, err
	}
	if in.ScheduledAt.IsZero() {
		return ItineraryItem{}, ErrValidation
	}

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return ItineraryItem{}, err
	}
	if _, err := s.member(ctx, sess.ID, in.AddedBy); err != nil {
		return ItineraryItem{}, err
	}
	venue, err := s.store.GetVenue(ctx, sess.ID, strings.TrimSpace(in.VenueID))
	if err != nil {
		return ItineraryItem{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}
	itemID, err := ids.NewULID(now)
	if err != nil {
		return ItineraryItem{}, err
	}

	item, err := s.store.AddItineraryItem(ctx, ItineraryItem{
		ID:          itemID,
		SessionID:   sess.ID,
		VenueID:     venue.ID,
		ScheduledAt: in.ScheduledAt,
		AddedBy:     strings.TrimSpace(in.AddedBy),
		AddedAt:     now,
	})
	if err != nil {
		return ItineraryItem{}, err
	}

	s.publish(sess.ID, v1.TypeItineraryUpdated, v1.ItineraryUpdatedPayload{
		Action:  "added",
		ItemID:  item.ID,
		VenueID: item.VenueID,
	}, now)

	return item, nil
}

// RemoveItineraryItemInput describes an itinerary removal.
type RemoveItineraryItemInput struct {
	SessionID   string
	ItemID      string
	RequestedBy string
	Now         time.Time
}

// RemoveItineraryItem deletes an item. Remaining order indices are
// re-compacted to a dense 0..n-1 permutation preserving relative order.
func (s *Service) RemoveItineraryItem(ctx context.Context, in RemoveItineraryItemInput) error {
	if s == nil || s.store == nil {
		return ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return err
	}
	if _, err := s.member(ctx, sess.ID, in.RequestedBy); err != nil {
		return err
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}

	if err := s.store.RemoveItineraryItem(ctx, sess.ID, strings.TrimSpace(in.ItemID), now); err != nil {
		return err
	}

	s.publish(sess.ID, v1.TypeItineraryUpdated, v1.ItineraryUpdatedPayload{
		Action: "removed",
		ItemID: strings.TrimSpace(in.ItemID),
	}, now)

	return nil
}

// ListItinerary returns the session's itinerary ordered by scheduled time.
func (s *Service) ListItinerary(ctx context.Context, sessionID string) ([]ItineraryItem, error) {
	if s == nil || s.store == nil {
		return nil, ErrValidation
	}
	if _, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID)); err != nil {
		return nil, err
	}
	return s.store.ListItinerary(ctx, strings.TrimSpace(sessionID))
}
