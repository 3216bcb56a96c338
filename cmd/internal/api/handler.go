package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"rally/cmd/internal/archive"
	"rally/cmd/internal/planning"
)

// Handler serves the Rally JSON API.
type Handler struct {
	log      *slog.Logger
	planning *planning.Service
	archive  *archive.Service

	// baseURL prefixes invite links, e.g. https://rally.example.com.
	baseURL string
}

// NewHandler constructs the API handler. archiveSvc may be nil; the archive
// endpoints then answer 404.
func NewHandler(log *slog.Logger, planningSvc *planning.Service, archiveSvc *archive.Service, baseURL string) *Handler {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Handler{
		log:      log,
		planning: planningSvc,
		archive:  archiveSvc,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// Register mounts every API route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("POST /api/join", h.join)

	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("GET /api/sessions/{id}/participants", h.listParticipants)

	mux.HandleFunc("GET /api/sessions/{id}/venues", h.listVenues)
	mux.HandleFunc("POST /api/sessions/{id}/venues", h.addVenue)

	mux.HandleFunc("POST /api/sessions/{id}/venues/{venueID}/votes", h.castVote)
	mux.HandleFunc("GET /api/sessions/{id}/venues/{venueID}/tally", h.tally)
	mux.HandleFunc("GET /api/sessions/{id}/rank", h.rank)

	mux.HandleFunc("POST /api/sessions/{id}/venues/{venueID}/comments", h.addComment)
	mux.HandleFunc("GET /api/sessions/{id}/venues/{venueID}/comments", h.listComments)

	mux.HandleFunc("GET /api/sessions/{id}/itinerary", h.listItinerary)
	mux.HandleFunc("POST /api/sessions/{id}/itinerary", h.addItineraryItem)
	mux.HandleFunc("DELETE /api/sessions/{id}/itinerary/{itemID}", h.removeItineraryItem)

	mux.HandleFunc("POST /api/sessions/{id}/finalize", h.finalize)
	mux.HandleFunc("POST /api/sessions/{id}/invite/revoke", h.revokeInvite)

	mux.HandleFunc("POST /api/archive/sweep", h.archiveSweep)
	mux.HandleFunc("GET /api/archive/stats", h.archiveStats)
}

func (h *Handler) inviteURL(token string) string {
	base := h.baseURL
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/join/%s", base, token)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	in := planning.CreateSessionInput{
		Name:          req.Name,
		OrganizerName: req.OrganizerName,
	}
	if req.InviteTTLHours > 0 {
		in.InviteTTL = time.Duration(req.InviteTTLHours) * time.Hour
	}

	created, err := h.planning.CreateSession(r.Context(), in)
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}

	h.log.Info("api.session.created", "session_id", created.Session.ID)
	writeJSON(h.log, w, http.StatusCreated, createSessionResponse{
		Session:     toSession(created.Session),
		Organizer:   toParticipant(created.Organizer),
		InviteToken: created.InviteToken,
		InviteURL:   h.inviteURL(created.InviteToken),
		ExpiresAt:   created.Invite.ExpiresAt,
	})
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	joined, err := h.planning.Join(r.Context(), planning.JoinInput{
		Token:       req.Token,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}

	status := http.StatusCreated
	if joined.Rejoined {
		status = http.StatusOK
	}
	writeJSON(h.log, w, status, joinResponse{
		Participant: toParticipant(joined.Participant),
		Session:     toSession(joined.Session),
		Rejoined:    joined.Rejoined,
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.planning.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toSession(sess))
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.planning.ListParticipants(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toParticipants(ps))
}

func (h *Handler) listVenues(w http.ResponseWriter, r *http.Request) {
	vs, err := h.planning.ListVenues(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toVenues(vs))
}

func (h *Handler) addVenue(w http.ResponseWriter, r *http.Request) {
	var req addVenueRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	venue, err := h.planning.AddVenue(r.Context(), planning.AddVenueInput{
		SessionID:   r.PathValue("id"),
		PlaceRef:    req.PlaceRef,
		Name:        req.Name,
		Address:     req.Address,
		Rating:      req.Rating,
		PriceLevel:  req.PriceLevel,
		PhotoURL:    req.PhotoURL,
		SuggestedBy: req.ParticipantID,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, toVenue(venue))
}

func (h *Handler) castVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	kind, ok := planning.ParseVoteKind(req.Kind)
	if !ok {
		writeError(h.log, w, http.StatusBadRequest, "validation", "kind must be up, down, or neutral")
		return
	}

	vote, err := h.planning.CastVote(r.Context(), planning.CastVoteInput{
		SessionID:     r.PathValue("id"),
		VenueID:       r.PathValue("venueID"),
		ParticipantID: req.ParticipantID,
		Kind:          kind,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toVote(vote))
}

func (h *Handler) tally(w http.ResponseWriter, r *http.Request) {
	t, err := h.planning.Tally(r.Context(), r.PathValue("id"), r.PathValue("venueID"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toTally(t))
}

func (h *Handler) rank(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.planning.Rank(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toRanking(ranking))
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	comment, err := h.planning.AddComment(r.Context(), planning.AddCommentInput{
		SessionID:     r.PathValue("id"),
		VenueID:       r.PathValue("venueID"),
		ParticipantID: req.ParticipantID,
		Text:          req.Text,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, toComment(comment))
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	cs, err := h.planning.ListComments(r.Context(), r.PathValue("id"), r.PathValue("venueID"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toComments(cs))
}

func (h *Handler) listItinerary(w http.ResponseWriter, r *http.Request) {
	items, err := h.planning.ListItinerary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, toItinerary(items))
}

func (h *Handler) addItineraryItem(w http.ResponseWriter, r *http.Request) {
	var req addItineraryItemRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	item, err := h.planning.AddItineraryItem(r.Context(), planning.AddItineraryItemInput{
		SessionID:   r.PathValue("id"),
		VenueID:     req.VenueID,
		ScheduledAt: req.ScheduledAt,
		AddedBy:     req.ParticipantID,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, toItineraryItem(item))
}

func (h *Handler) removeItineraryItem(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	err := h.planning.RemoveItineraryItem(r.Context(), planning.RemoveItineraryItemInput{
		SessionID:   r.PathValue("id"),
		ItemID:      r.PathValue("itemID"),
		RequestedBy: req.ParticipantID,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusNoContent, nil)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	summary, err := h.planning.Finalize(r.Context(), planning.FinalizeInput{
		SessionID:   r.PathValue("id"),
		RequestedBy: req.ParticipantID,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}

	h.log.Info("api.session.finalized", "session_id", summary.Session.ID)
	writeJSON(h.log, w, http.StatusOK, finalizeResponse{
		Session:      toSession(summary.Session),
		Participants: toParticipants(summary.Participants),
		Itinerary:    toItinerary(summary.Itinerary),
		FinalizedAt:  summary.FinalizedAt,
	})
}

func (h *Handler) revokeInvite(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	err := h.planning.RevokeInvite(r.Context(), planning.RevokeInviteInput{
		SessionID:   r.PathValue("id"),
		RequestedBy: req.ParticipantID,
	})
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusNoContent, nil)
}

func (h *Handler) archiveSweep(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(h.log, w, http.StatusNotFound, "not_found", "archival not configured")
		return
	}

	var req sweepRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if req.InactiveDays < 0 {
		writeError(h.log, w, http.StatusBadRequest, "validation", "inactive_days must not be negative")
		return
	}

	now := time.Now().UTC()
	var (
		n   int
		err error
	)
	if req.InactiveDays > 0 {
		n, err = h.archive.SweepOlderThan(r.Context(), time.Duration(req.InactiveDays)*24*time.Hour, now)
	} else {
		n, err = h.archive.Sweep(r.Context(), now)
	}
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, sweepResponse{Archived: n})
}

func (h *Handler) archiveStats(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(h.log, w, http.StatusNotFound, "not_found", "archival not configured")
		return
	}

	counts, err := h.archive.Stats(r.Context())
	if err != nil {
		writeServiceError(h.log, w, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, archiveStatsResponse{
		Active:    counts.Active,
		Finalized: counts.Finalized,
		Archived:  counts.Archived,
	})
}
