package planning

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used when no database is configured, and
// by service tests. A single mutex serializes writes; that is a stricter
// ordering than the per-key requirement, which keeps the dev store simple.
type MemoryStore struct {
	mu sync.Mutex

	sessions     map[string]Session
	participants map[string][]Participant   // session id -> join order
	venues       map[string][]Venue         // session id -> suggestion order
	votes        map[string]map[string]Vote // session id -> (venue/participant) -> vote
	comments     map[string][]Comment       // session id -> append order
	itineraries  map[string][]ItineraryItem // session id -> order index order
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]Session),
		participants: make(map[string][]Participant),
		venues:       make(map[string][]Venue),
		votes:        make(map[string]map[string]Vote),
		comments:     make(map[string][]Comment),
		itineraries:  make(map[string][]ItineraryItem),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

func voteKey(venueID, participantID string) string {
	return venueID + "/" + participantID
}

// CreateSession inserts a session.
func (s *MemoryStore) CreateSession(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.ID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return ErrDuplicate
	}
	s.sessions[sess.ID] = sess
	return nil
}

// GetSession fetches a session by id.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// UpdateSessionStatus performs a conditional status transition.
func (s *MemoryStore) UpdateSessionStatus(ctx context.Context, id string, from, to Status, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if sess.Status != from {
		return false, nil
	}
	sess.Status = to
	sess.UpdatedAt = now
	s.sessions[id] = sess
	return true, nil
}

// touchLocked bumps the owning session's updated_at. Caller holds s.mu.
func (s *MemoryStore) touchLocked(sessionID string, now time.Time) {
	if sess, ok := s.sessions[sessionID]; ok {
		sess.UpdatedAt = now
		s.sessions[sessionID] = sess
	}
}

// CreateParticipant appends a participant in join order.
func (s *MemoryStore) CreateParticipant(ctx context.Context, p Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" || p.SessionID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[p.SessionID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.participants[p.SessionID] {
		if existing.ID == p.ID {
			return ErrDuplicate
		}
	}
	s.participants[p.SessionID] = append(s.participants[p.SessionID], p)
	s.touchLocked(p.SessionID, p.JoinedAt)
	return nil
}

// GetParticipant fetches a participant within a session.
func (s *MemoryStore) GetParticipant(ctx context.Context, sessionID, participantID string) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants[sessionID] {
		if p.ID == participantID {
			return p, nil
		}
	}
	return Participant{}, ErrNotFound
}

// FindParticipantByName fetches a participant by display name (case-insensitive).
func (s *MemoryStore) FindParticipantByName(ctx context.Context, sessionID, displayName string) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants[sessionID] {
		if strings.EqualFold(p.DisplayName, displayName) {
			return p, nil
		}
	}
	return Participant{}, ErrNotFound
}

// ListParticipants returns members ordered by join time.
func (s *MemoryStore) ListParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]Participant(nil), s.participants[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// CreateVenue appends a venue option.
func (s *MemoryStore) CreateVenue(ctx context.Context, v Venue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.ID == "" || v.SessionID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[v.SessionID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.venues[v.SessionID] {
		if existing.ID == v.ID {
			return ErrDuplicate
		}
	}
	s.venues[v.SessionID] = append(s.venues[v.SessionID], v)
	s.touchLocked(v.SessionID, v.SuggestedAt)
	return nil
}

// GetVenue fetches a venue within a session.
func (s *MemoryStore) GetVenue(ctx context.Context, sessionID, venueID string) (Venue, error) {
	if err := ctx.Err(); err != nil {
		return Venue{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.venues[sessionID] {
		if v.ID == venueID {
			return v, nil
		}
	}
	return Venue{}, ErrNotFound
}

// ListVenues returns venue options in suggestion order.
func (s *MemoryStore) ListVenues(ctx context.Context, sessionID string) ([]Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Venue(nil), s.venues[sessionID]...), nil
}

// UpsertVote creates or overwrites the vote keyed by (venue, participant).
func (s *MemoryStore) UpsertVote(ctx context.Context, v Vote) (Vote, bool, error) {
	if err := ctx.Err(); err != nil {
		return Vote{}, false, err
	}
	if v.ID == "" || v.SessionID == "" || v.VenueID == "" || v.ParticipantID == "" {
		return Vote{}, false, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[v.SessionID]; !ok {
		return Vote{}, false, ErrNotFound
	}

	byKey := s.votes[v.SessionID]
	if byKey == nil {
		byKey = make(map[string]Vote)
		s.votes[v.SessionID] = byKey
	}

	key := voteKey(v.VenueID, v.ParticipantID)
	if existing, ok := byKey[key]; ok {
		existing.Kind = v.Kind
		existing.UpdatedAt = v.UpdatedAt
		byKey[key] = existing
		s.touchLocked(v.SessionID, v.UpdatedAt)
		return existing, false, nil
	}

	byKey[key] = v
	s.touchLocked(v.SessionID, v.UpdatedAt)
	return v, true, nil
}

// ListVotesByVenue returns current votes for one venue.
func (s *MemoryStore) ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vote
	for _, v := range s.votes[sessionID] {
		if v.VenueID == venueID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListVotesBySession returns all current votes in a session.
func (s *MemoryStore) ListVotesBySession(ctx context.Context, sessionID string) ([]Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vote
	for _, v := range s.votes[sessionID] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateComment appends a comment.
func (s *MemoryStore) CreateComment(ctx context.Context, c Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" || c.SessionID == "" || c.VenueID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[c.SessionID]; !ok {
		return ErrNotFound
	}
	s.comments[c.SessionID] = append(s.comments[c.SessionID], c)
	s.touchLocked(c.SessionID, c.CreatedAt)
	return nil
}

// ListComments returns comments on a venue in append order.
func (s *MemoryStore) ListComments(ctx context.Context, sessionID, venueID string) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Comment
	for _, c := range s.comments[sessionID] {
		if c.VenueID == venueID {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddItineraryItem appends an item with the next dense order index.
func (s *MemoryStore) AddItineraryItem(ctx context.Context, item ItineraryItem) (ItineraryItem, error) {
	if err := ctx.Err(); err != nil {
		return ItineraryItem{}, err
	}
	if item.ID == "" || item.SessionID == "" || item.VenueID == "" {
		return ItineraryItem{}, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[item.SessionID]; !ok {
		return ItineraryItem{}, ErrNotFound
	}

	items := s.itineraries[item.SessionID]
	next := 0
	for _, existing := range items {
		if existing.OrderIndex >= next {
			next = existing.OrderIndex + 1
		}
	}
	item.OrderIndex = next
	s.itineraries[item.SessionID] = append(items, item)
	s.touchLocked(item.SessionID, item.AddedAt)
	return item, nil
}

// RemoveItineraryItem deletes an item and re-compacts order indices.
func (s *MemoryStore) RemoveItineraryItem(ctx context.Context, sessionID, itemID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.itineraries[sessionID]
	idx := -1
	for i, existing := range items {
		if existing.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	items = append(items[:idx], items[idx+1:]...)

	// Re-number to keep indices a dense 0..n-1 permutation.
	sort.SliceStable(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
	for i := range items {
		items[i].OrderIndex = i
	}

	s.itineraries[sessionID] = items
	s.touchLocked(sessionID, now)
	return nil
}

// ListItinerary returns items ordered by scheduled time ascending.
func (s *MemoryStore) ListItinerary(ctx context.Context, sessionID string) ([]ItineraryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]ItineraryItem(nil), s.itineraries[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

// ArchiveSessionsBefore transitions inactive sessions to archived.
func (s *MemoryStore) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time, limit int, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, sess := range s.sessions {
		if limit > 0 && count >= limit {
			break
		}
		if sess.Status == StatusArchived {
			continue
		}
		if !sess.UpdatedAt.Before(cutoff) {
			continue
		}
		sess.Status = StatusArchived
		sess.UpdatedAt = now
		s.sessions[id] = sess
		count++
	}
	return count, nil
}

// SessionStatusCounts returns the aggregate session counts by status.
func (s *MemoryStore) SessionStatusCounts(ctx context.Context) (StatusCounts, error) {
	if err := ctx.Err(); err != nil {
		return StatusCounts{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out StatusCounts
	for _, sess := range s.sessions {
		switch sess.Status {
		case StatusActive:
			out.Active++
		case StatusFinalized:
			out.Finalized++
		case StatusArchived:
			out.Archived++
		}
	}
	return out, nil
}
