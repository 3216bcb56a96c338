package planning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rally/cmd/internal/invite"
	v1 "rally/shared/contracts/planning/v1"
)

// capturePublisher records every published envelope for assertions.
type capturePublisher struct {
	mu   sync.Mutex
	envs []v1.Envelope
}

func (p *capturePublisher) Publish(_ string, env v1.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
}

func (p *capturePublisher) byType(typ string) []v1.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []v1.Envelope
	for _, e := range p.envs {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	bus   *capturePublisher
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	invites, err := invite.NewService(invite.NewMemoryStore())
	if err != nil {
		t.Fatalf("invite.NewService: %v", err)
	}

	store := NewMemoryStore()
	bus := &capturePublisher{}
	now := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)

	svc, err := NewService(store, invites,
		WithPublisher(bus),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, store: store, bus: bus, now: now}
}

func (f *fixture) createSession(t *testing.T) CreatedSession {
	t.Helper()

	created, err := f.svc.CreateSession(context.Background(), CreateSessionInput{
		Name:          "friday dinner",
		OrganizerName: "Sam",
		Now:           f.now,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return created
}

func (f *fixture) join(t *testing.T, token, name string) Joined {
	t.Helper()

	joined, err := f.svc.Join(context.Background(), JoinInput{
		Token:       token,
		DisplayName: name,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("Join(%q): %v", name, err)
	}
	return joined
}

func (f *fixture) addVenue(t *testing.T, sessionID, suggestedBy, name string) Venue {
	t.Helper()

	venue, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   sessionID,
		Name:        name,
		SuggestedBy: suggestedBy,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("AddVenue(%q): %v", name, err)
	}
	return venue
}

func TestCreateSessionSetsUpOrganizerAndInvite(t *testing.T) {
	f := newFixture(t)

	created := f.createSession(t)

	if created.Session.Status != StatusActive {
		t.Fatalf("status = %q, want active", created.Session.Status)
	}
	if !created.Organizer.IsOrganizer {
		t.Fatalf("organizer flag not set")
	}
	if created.Session.OrganizerID != created.Organizer.ID {
		t.Fatalf("OrganizerID %q != organizer participant %q", created.Session.OrganizerID, created.Organizer.ID)
	}
	if created.InviteToken == "" {
		t.Fatalf("plain invite token missing")
	}
	if created.Invite.SessionID != created.Session.ID {
		t.Fatalf("invite bound to wrong session")
	}

	// The organizer is a regular member for every other purpose.
	ok, err := f.svc.IsMember(context.Background(), created.Session.ID, created.Organizer.ID)
	if err != nil || !ok {
		t.Fatalf("IsMember(organizer) = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		input CreateSessionInput
	}{
		{name: "empty name", input: CreateSessionInput{OrganizerName: "Sam"}},
		{name: "empty organizer", input: CreateSessionInput{Name: "dinner"}},
		{name: "name too long", input: CreateSessionInput{Name: strings.Repeat("x", maxSessionNameChars+1), OrganizerName: "Sam"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.CreateSession(context.Background(), tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestOrganizerIsFixedForSessionLifetime(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	f.join(t, created.InviteToken, "Alex")
	f.join(t, created.InviteToken, "Robin")

	ps, err := f.svc.ListParticipants(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}

	organizers := 0
	for _, p := range ps {
		if p.IsOrganizer {
			organizers++
			if p.ID != created.Organizer.ID {
				t.Fatalf("unexpected organizer %q", p.ID)
			}
		}
	}
	if organizers != 1 {
		t.Fatalf("organizer count = %d, want exactly 1", organizers)
	}
}

func TestFinalizeByNonOrganizerFails(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")

	_, err := f.svc.Finalize(context.Background(), FinalizeInput{
		SessionID:   created.Session.ID,
		RequestedBy: joined.Participant.ID,
		Now:         f.now,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	sess, _ := f.svc.GetSession(context.Background(), created.Session.ID)
	if sess.Status != StatusActive {
		t.Fatalf("failed finalize must not change status, got %q", sess.Status)
	}
}

func TestFinalizeSnapshotsAndLocks(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")
	venue := f.addVenue(t, created.Session.ID, joined.Participant.ID, "Noodle Bar")

	item, err := f.svc.AddItineraryItem(context.Background(), AddItineraryItemInput{
		SessionID:   created.Session.ID,
		VenueID:     venue.ID,
		ScheduledAt: f.now.Add(24 * time.Hour),
		AddedBy:     created.Organizer.ID,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("AddItineraryItem: %v", err)
	}

	summary, err := f.svc.Finalize(context.Background(), FinalizeInput{
		SessionID:   created.Session.ID,
		RequestedBy: created.Organizer.ID,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if summary.Session.Status != StatusFinalized {
		t.Fatalf("status = %q, want finalized", summary.Session.Status)
	}
	if len(summary.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(summary.Participants))
	}
	if len(summary.Itinerary) != 1 || summary.Itinerary[0].ID != item.ID {
		t.Fatalf("itinerary snapshot wrong: %+v", summary.Itinerary)
	}

	if events := f.bus.byType(v1.TypeSessionFinalized); len(events) != 1 {
		t.Fatalf("session_finalized events = %d, want 1", len(events))
	}

	// Every mutation now fails with the finalized sentinel.
	if _, err := f.svc.CastVote(context.Background(), CastVoteInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: joined.Participant.ID,
		Kind:          VoteUp,
		Now:           f.now,
	}); !errors.Is(err, ErrSessionFinalized) {
		t.Fatalf("CastVote err = %v, want ErrSessionFinalized", err)
	}
	if _, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   created.Session.ID,
		Name:        "Late Entry",
		SuggestedBy: joined.Participant.ID,
		Now:         f.now,
	}); !errors.Is(err, ErrSessionFinalized) {
		t.Fatalf("AddVenue err = %v, want ErrSessionFinalized", err)
	}

	// Reads keep working.
	if _, err := f.svc.Rank(context.Background(), created.Session.ID); err != nil {
		t.Fatalf("Rank after finalize: %v", err)
	}

	// Finalizing twice is an invalid transition.
	if _, err := f.svc.Finalize(context.Background(), FinalizeInput{
		SessionID:   created.Session.ID,
		RequestedBy: created.Organizer.ID,
		Now:         f.now,
	}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second finalize err = %v, want ErrInvalidTransition", err)
	}
}

func TestConcurrentFinalizeHasOneWinner(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	const attempts = 8
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Finalize(context.Background(), FinalizeInput{
				SessionID:   created.Session.ID,
				RequestedBy: created.Organizer.ID,
				Now:         f.now,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidTransition):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("finalize winners = %d, want exactly 1", wins)
	}
}

func TestMutationsOnArchivedSession(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	ok, err := f.store.UpdateSessionStatus(context.Background(), created.Session.ID, StatusActive, StatusArchived, f.now)
	if err != nil || !ok {
		t.Fatalf("UpdateSessionStatus = (%v, %v)", ok, err)
	}

	if _, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   created.Session.ID,
		Name:        "Too Late",
		SuggestedBy: created.Organizer.ID,
		Now:         f.now,
	}); !errors.Is(err, ErrSessionArchived) {
		t.Fatalf("err = %v, want ErrSessionArchived", err)
	}
}

func TestRevokeInviteOrganizerOnlyAndIdempotent(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	joined := f.join(t, created.InviteToken, "Alex")

	err := f.svc.RevokeInvite(context.Background(), RevokeInviteInput{
		SessionID:   created.Session.ID,
		RequestedBy: joined.Participant.ID,
		Now:         f.now,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-organizer revoke err = %v, want ErrUnauthorized", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.RevokeInvite(context.Background(), RevokeInviteInput{
			SessionID:   created.Session.ID,
			RequestedBy: created.Organizer.ID,
			Now:         f.now,
		}); err != nil {
			t.Fatalf("organizer revoke #%d: %v", i+1, err)
		}
	}

	// Joined members keep working after revocation.
	if _, err := f.svc.AddVenue(context.Background(), AddVenueInput{
		SessionID:   created.Session.ID,
		Name:        "Noodle Bar",
		SuggestedBy: joined.Participant.ID,
		Now:         f.now,
	}); err != nil {
		t.Fatalf("member blocked after revoke: %v", err)
	}
}

func TestAddCommentValidationAndOrdering(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	venue := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar")

	if _, err := f.svc.AddComment(context.Background(), AddCommentInput{
		SessionID:     created.Session.ID,
		VenueID:       venue.ID,
		ParticipantID: created.Organizer.ID,
		Text:          strings.Repeat("x", maxCommentChars+1),
		Now:           f.now,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized comment err = %v, want ErrValidation", err)
	}

	for i, text := range []string{"first", "second", "third"} {
		if _, err := f.svc.AddComment(context.Background(), AddCommentInput{
			SessionID:     created.Session.ID,
			VenueID:       venue.ID,
			ParticipantID: created.Organizer.ID,
			Text:          text,
			Now:           f.now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("AddComment(%q): %v", text, err)
		}
	}

	cs, err := f.svc.ListComments(context.Background(), created.Session.ID, venue.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(cs) != 3 || cs[0].Text != "first" || cs[2].Text != "third" {
		t.Fatalf("comments out of order: %+v", cs)
	}

	if events := f.bus.byType(v1.TypeCommentAdded); len(events) != 3 {
		t.Fatalf("comment_added events = %d, want 3", len(events))
	}
}
