package planning

import (
	"context"
	"errors"
	"testing"
	"time"

	v1 "rally/shared/contracts/planning/v1"
)

func addItem(t *testing.T, f *fixture, sessionID, venueID, addedBy string, scheduledAt time.Time) ItineraryItem {
	t.Helper()

	item, err := f.svc.AddItineraryItem(context.Background(), AddItineraryItemInput{
		SessionID:   sessionID,
		VenueID:     venueID,
		ScheduledAt: scheduledAt,
		AddedBy:     addedBy,
		Now:         f.now,
	})
	if err != nil {
		t.Fatalf("AddItineraryItem: %v", err)
	}
	return item
}

func TestAddItineraryItemAssignsDenseIndices(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	venues := []Venue{
		f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar"),
		f.addVenue(t, created.Session.ID, created.Organizer.ID, "Taqueria"),
		f.addVenue(t, created.Session.ID, created.Organizer.ID, "Pizza Place"),
	}

	for i, v := range venues {
		item := addItem(t, f, created.Session.ID, v.ID, created.Organizer.ID, f.now.Add(time.Duration(i)*time.Hour))
		if item.OrderIndex != i {
			t.Fatalf("item %d order_index = %d", i, item.OrderIndex)
		}
	}
}

func TestRemoveItineraryItemCompactsIndices(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	items := make([]ItineraryItem, 0, 3)
	for i, name := range []string{"Noodle Bar", "Taqueria", "Pizza Place"} {
		v := f.addVenue(t, created.Session.ID, created.Organizer.ID, name)
		items = append(items, addItem(t, f, created.Session.ID, v.ID, created.Organizer.ID, f.now.Add(time.Duration(i)*time.Hour)))
	}

	// Remove the middle item; the survivors must renumber to 0..n-1 with
	// relative order preserved.
	if err := f.svc.RemoveItineraryItem(context.Background(), RemoveItineraryItemInput{
		SessionID:   created.Session.ID,
		ItemID:      items[1].ID,
		RequestedBy: created.Organizer.ID,
		Now:         f.now,
	}); err != nil {
		t.Fatalf("RemoveItineraryItem: %v", err)
	}

	remaining, err := f.svc.ListItinerary(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("ListItinerary: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
	if remaining[0].ID != items[0].ID || remaining[1].ID != items[2].ID {
		t.Fatalf("relative order lost: %+v", remaining)
	}
	seen := map[int]bool{}
	for _, it := range remaining {
		seen[it.OrderIndex] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("indices not dense after removal: %+v", remaining)
	}

	// A new item takes the next dense index.
	v := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Ramen Shop")
	fresh := addItem(t, f, created.Session.ID, v.ID, created.Organizer.ID, f.now.Add(5*time.Hour))
	if fresh.OrderIndex != 2 {
		t.Fatalf("new item order_index = %d, want 2", fresh.OrderIndex)
	}
}

func TestListItineraryIsChronological(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)

	// Insert out of chronological order.
	late := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Late Stop")
	early := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Early Stop")
	addItem(t, f, created.Session.ID, late.ID, created.Organizer.ID, f.now.Add(8*time.Hour))
	addItem(t, f, created.Session.ID, early.ID, created.Organizer.ID, f.now.Add(1*time.Hour))

	items, err := f.svc.ListItinerary(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("ListItinerary: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if !items[0].ScheduledAt.Before(items[1].ScheduledAt) {
		t.Fatalf("listing not chronological: %+v", items)
	}
	if items[0].VenueID != early.ID {
		t.Fatalf("first item should be the early stop")
	}
}

func TestAddItineraryItemValidation(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	venue := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar")

	// Zero schedule time.
	if _, err := f.svc.AddItineraryItem(context.Background(), AddItineraryItemInput{
		SessionID: created.Session.ID,
		VenueID:   venue.ID,
		AddedBy:   created.Organizer.ID,
		Now:       f.now,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero scheduled_at err = %v, want ErrValidation", err)
	}

	// Venue from a different session.
	other, err := f.svc.CreateSession(context.Background(), CreateSessionInput{
		Name:          "other plan",
		OrganizerName: "Robin",
		Now:           f.now,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	foreign := f.addVenue(t, other.Session.ID, other.Organizer.ID, "Elsewhere")

	if _, err := f.svc.AddItineraryItem(context.Background(), AddItineraryItemInput{
		SessionID:   created.Session.ID,
		VenueID:     foreign.ID,
		ScheduledAt: f.now.Add(time.Hour),
		AddedBy:     created.Organizer.ID,
		Now:         f.now,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign venue err = %v, want ErrNotFound", err)
	}

	// Non-member.
	if _, err := f.svc.AddItineraryItem(context.Background(), AddItineraryItemInput{
		SessionID:   created.Session.ID,
		VenueID:     venue.ID,
		ScheduledAt: f.now.Add(time.Hour),
		AddedBy:     "stranger",
		Now:         f.now,
	}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-member err = %v, want ErrUnauthorized", err)
	}
}

func TestItineraryEventsCarryAction(t *testing.T) {
	f := newFixture(t)
	created := f.createSession(t)
	venue := f.addVenue(t, created.Session.ID, created.Organizer.ID, "Noodle Bar")

	item := addItem(t, f, created.Session.ID, venue.ID, created.Organizer.ID, f.now.Add(time.Hour))

	if err := f.svc.RemoveItineraryItem(context.Background(), RemoveItineraryItemInput{
		SessionID:   created.Session.ID,
		ItemID:      item.ID,
		RequestedBy: created.Organizer.ID,
		Now:         f.now,
	}); err != nil {
		t.Fatalf("RemoveItineraryItem: %v", err)
	}

	events := f.bus.byType(v1.TypeItineraryUpdated)
	if len(events) != 2 {
		t.Fatalf("itinerary_updated events = %d, want 2", len(events))
	}
}
