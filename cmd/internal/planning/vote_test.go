package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	v1 "rally/shared/contracts/planning/v1"
)

func TestCastVoteUpsertsInPlace(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")
	venue := f.addVenue(t, created.Session.ID, joined.Participant.ID, "Noodle Bar")

	first, err := f.svc.CastVote(context.Background(), CastVoteInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: joined.Participant.ID,
		Kind:          VoteUp,
		Now:           f.now,
	})
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	second, err := f.svc.CastVote(context.Background(), CastVoteInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: joined.Participant.ID,
		Kind:          VoteDown,
		Now:           f.now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("second CastVote: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("revote created a new row: %q vs %q", second.ID, first.ID)
	}
	if second.Kind != VoteDown {
		t.Fatalf("kind = %q, want down", second.Kind)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed on upsert")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at not bumped")
	}

	tally, err := f.svc.Tally(context.Background(), created.Session.ID, venue.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Total != 1 || tally.Down != 1 || tally.Up != 0 {
		t.Fatalf("tally = %+v, want a single down vote", tally)
	}
}

func TestCastVoteRejectsInvalidKindAndNonMember(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	venue := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar")

	if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: created.Organizer.ID,
		Kind:          VoteKind("maybe"),
		Now:           f.now,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid kind err = %v, want ErrValidation", err)
	}

	if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: "stranger",
		Kind:          VoteUp,
		Now:           f.now,
	}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-member err = %v, want ErrUnauthorized", err)
	}
}

func TestConcurrentCastVoteSameKeyKeepsSingleBallot(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")
	venue := f.addVenue(t, created.Session.ID, joined.Participant.ID, "Noodle Bar")

	kinds := []VoteKind{VoteUp, VoteDown, VoteNeutral}

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CastVote(context.Background(), CastVoteInput{
				SessionID:     created.Session.ID,
				VenueID:       venue.ID,
				ParticipantID: joined.Participant.ID,
				Kind:          kinds[i%len(kinds)],
				Now:           f.now,
			})
			if err != nil {
				t.Errorf("CastVote: %v", err)
			}
		}(i)
	}
	wg.Wait()

	tally, err := f.svc.Tally(context.Background(), created.Session.ID, venue.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Total != 1 {
		t.Fatalf("total = %d, want 1 (one ballot per participant)", tally.Total)
	}
}

func TestTallyPartitionsByKindAndSortsBallots(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	venue := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar")

	votes := map[string]VoteKind{
		"Alex":  VoteUp,
		"Robin": VoteUp,
		"Kim":   VoteDown,
		"Noor":  VoteNeutral,
	}
	for name, kind := range votes {
		joined := f.join(t, created.InviteToken, name)
		if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
			SessionID:     created.Session.ID,
			VenueID:       venue.ID,
			ParticipantID: joined.Participant.ID,
			Kind:          kind,
			Now:           f.now,
		}); err != nil {
			t.Fatalf("CastVote(%s): %v", name, err)
		}
	}

	tally, err := f.svc.Tally(context.Background(), created.Session.ID, venue.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Up != 2 || tally.Down != 1 || tally.Neutral != 1 || tally.Total != 4 {
		t.Fatalf("tally = %+v", tally)
	}
	if tally.Score() != 1 {
		t.Fatalf("score = %d, want 1", tally.Score())
	}
	for i := 1; i < len(tally.Ballots); i++ {
		if tally.Ballots[i-1].ParticipantID > tally.Ballots[i].ParticipantID {
			t.Fatalf("ballots not sorted by participant id: %+v", tally.Ballots)
		}
	}
}

func TestRankOrdersByScoreWithTieBreaks(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	voters := make([]Joined, 0, 3)
	for _, name := range []string{"Alex", "Robin", "Kim"} {
		voters = append(voters, f.join(t, created.InviteToken, name))
	}

	// Suggested at distinct instants so the tie-break is deterministic.
	venues := make([]Venue, 0, 3)
	for i, name := range []string{"Noodle Bar", "Taqueria", "Pizza Place"} {
		v, err := f.svc.AddVenue(context.Background(), AddVenueInput{
			SessionID:   created.Session.ID,
			Name:        name,
			SuggestedBy: created.Organizer.ID,
			Now:         f.now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddVenue(%s): %v", name, err)
		}
		venues = append(venues, v)
	}

	cast := func(voter Joined, venue Venue, kind VoteKind) {
		t.Helper()
		if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
			SessionID:     created.Session.ID,
			VenueID:       venue.ID,
			ParticipantID: voter.Participant.ID,
			Kind:          kind,
			Now:           f.now,
		}); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}

	// Taqueria: +2. Noodle Bar: +1 with two ballots. Pizza Place: 0 ballots.
	cast(voters[0], venues[1], VoteUp)
	cast(voters[1], venues[1], VoteUp)
	cast(voters[0], venues[0], VoteUp)
	cast(voters[1], venues[0], VoteNeutral)

	ranking, err := f.svc.Rank(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(ranking) != 3 {
		t.Fatalf("ranking len = %d, want 3", len(ranking))
	}

	wantOrder := []string{"Taqueria", "Noodle Bar", "Pizza Place"}
	for i, want := range wantOrder {
		if ranking[i].Venue.Name != want {
			t.Fatalf("rank %d = %q, want %q", i+1, ranking[i].Venue.Name, want)
		}
		if ranking[i].Rank != i+1 {
			t.Fatalf("Rank field = %d, want %d", ranking[i].Rank, i+1)
		}
	}

	// Reversing the top venue's ballots reverses the head of the ranking.
	cast(voters[0], venues[1], VoteDown)
	cast(voters[1], venues[1], VoteDown)

	ranking, err = f.svc.Rank(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("Rank after reversal: %v", err)
	}
	if ranking[0].Venue.Name != "Noodle Bar" {
		t.Fatalf("rank 1 = %q after reversal, want Noodle Bar", ranking[0].Venue.Name)
	}
	if ranking[len(ranking)-1].Venue.Name != "Taqueria" {
		t.Fatalf("last = %q after reversal, want Taqueria", ranking[len(ranking)-1].Venue.Name)
	}
}

func TestRankTieBreaksOnSuggestedAt(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	// Two venues with identical (zero-ballot) tallies: earlier suggestion wins.
	later, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   created.Session.ID,
		Name:        "Later",
		SuggestedBy: created.Organizer.ID,
		Now:         f.now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("AddVenue: %v", err)
	}
	earlier, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   created.Session.ID,
		Name:        "Earlier",
		SuggestedBy: created.Organizer.ID,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("AddVenue: %v", err)
	}

	ranking, err := f.svc.Rank(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if ranking[0].Venue.ID != earlier.ID || ranking[1].Venue.ID != later.ID {
		t.Fatalf("tie-break by suggested_at violated: %+v", ranking)
	}
}

func TestCastVoteEmitsEventPerCast(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")
	venue := f.addVenue(t, created.Session.ID, joined.Participant.ID, "Noodle Bar")

	for i, kind := range []VoteKind{VoteUp, VoteDown} {
		if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
			SessionID:     created.Session.ID,
			VenueID:       venue.ID,
			ParticipantID: joined.Participant.ID,
			Kind:          kind,
			Now:           f.now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}

	events := f.bus.byType(v1.TypeVoteCast)
	if len(events) != 2 {
		t.Fatalf("vote_cast events = %d, want 2 (one per cast, including overwrites)", len(events))
	}
	for _, e := range events {
		if e.SessionID != created.Session.ID || e.V != v1.Version {
			t.Fatalf("bad envelope: %+v", e)
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("envelope invalid: %v", err)
		}
	}
}

func TestRankUnknownSession(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Rank(context.Background(), fmt.Sprintf("missing-%d", time.Now().Unix())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
