package planning

import (
	"context"
	"sort"
	"strings"
	"time"

	"rally/cmd/identity/ids"
	v1 "rally/shared/contracts/planning/v1"
)

// CastVoteInput describes a vote cast.
type CastVoteInput struct {
	SessionID     string
	VenueID       string
	ParticipantID string
	Kind          VoteKind
	Now           time.Time
}

// CastVote upserts the participant's vote on a venue. At most one vote exists
// per (session, venue, participant); a repeated cast overwrites the kind and
// bumps updated_at. The store's conditional write makes concurrent casts on
// the same key race safely: the later logical write wins, both callers
// succeed, and no second row is ever created.
func (s *Service) CastVote(ctx context.Context, in CastVoteInput) (Vote, error) {
	if s == nil || s.store == nil {
		return Vote{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Vote{}, err
	}

	if _, ok := ParseVoteKind(string(in.Kind)); !ok {
		return Vote{}, ErrValidation
	}

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return Vote{}, err
	}
	if _, err := s.member(ctx, sess.ID, in.ParticipantID); err != nil {
		return Vote{}, err
	}
	venue, err := s.store.GetVenue(ctx, sess.ID, strings.TrimSpace(in.VenueID))
	if err != nil {
		return Vote{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock()
	}
	voteID, err := ids.NewULID(now)
	if err != nil {
		return Vote{}, err
	}

	stored, _, err := s.store.UpsertVote(ctx, Vote{
		ID:            voteID,
		SessionID:     sess.ID,
		VenueID:       venue.ID,
		ParticipantID: strings.TrimSpace(in.ParticipantID),
		Kind:          in.Kind,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Vote{}, err
	}

	s.publish(sess.ID, v1.TypeVoteCast, v1.VoteCastPayload{
		VenueID:       stored.VenueID,
		ParticipantID: stored.ParticipantID,
		Kind:          string(stored.Kind),
	}, now)

	return stored, nil
}

// Tally counts the current votes on a venue, partitioned by kind. It reflects
// every vote committed before the read began.
func (s *Service) Tally(ctx context.Context, sessionID, venueID string) (Tally, error) {
	if s == nil || s.store == nil {
		return Tally{}, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return Tally{}, err
	}

	if _, err := s.store.GetVenue(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(venueID)); err != nil {
		return Tally{}, err
	}

	votes, err := s.store.ListVotesByVenue(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(venueID))
	if err != nil {
		return Tally{}, err
	}
	return tallyVotes(votes), nil
}

// Rank orders the session's venues by score (upvotes minus downvotes)
// descending, then total vote count descending, then suggested_at ascending,
// then venue id. Rank is the 1-based position; the output is a total order
// independent of venue input order.
func (s *Service) Rank(ctx context.Context, sessionID string) ([]RankedVenue, error) {
	if s == nil || s.store == nil {
		return nil, ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	venues, err := s.store.ListVenues(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	votes, err := s.store.ListVotesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byVenue := make(map[string][]Vote, len(venues))
	for _, v := range votes {
		byVenue[v.VenueID] = append(byVenue[v.VenueID], v)
	}

	out := make([]RankedVenue, 0, len(venues))
	for _, venue := range venues {
		out = append(out, RankedVenue{
			Venue: venue,
			Tally: tallyVotes(byVenue[venue.ID]),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Tally.Score() != b.Tally.Score() {
			return a.Tally.Score() > b.Tally.Score()
		}
		if a.Tally.Total != b.Tally.Total {
			return a.Tally.Total > b.Tally.Total
		}
		if !a.Venue.SuggestedAt.Equal(b.Venue.SuggestedAt) {
			return a.Venue.SuggestedAt.Before(b.Venue.SuggestedAt)
		}
		return a.Venue.ID < b.Venue.ID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func tallyVotes(votes []Vote) Tally {
	t := Tally{Ballots: make([]Ballot, 0, len(votes))}
	for _, v := range votes {
		switch v.Kind {
		case VoteUp:
			t.Up++
		case VoteDown:
			t.Down++
		case VoteNeutral:
			t.Neutral++
		default:
			continue
		}
		t.Total++
		t.Ballots = append(t.Ballots, Ballot{ParticipantID: v.ParticipantID, Kind: v.Kind})
	}
	sort.Slice(t.Ballots, func(i, j int) bool { return t.Ballots[i].ParticipantID < t.Ballots[j].ParticipantID })
	return t
}
