package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"rally/cmd/internal/archive"
	"rally/cmd/internal/invite"
	"rally/cmd/internal/planning"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("api.encode.fail", "err", err)
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, status int, code, msg string) {
	writeJSON(log, w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// readJSON decodes the request body into dst, rejecting unknown fields and
// oversized or trailing input.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

// serviceError maps a service error onto (status, code). One table for the
// whole API so every handler agrees.
func serviceError(err error) (int, string) {
	switch {
	case errors.Is(err, planning.ErrValidation),
		errors.Is(err, invite.ErrInvalidInput),
		errors.Is(err, archive.ErrInvalidInput):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, planning.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, invite.ErrRevoked):
		return http.StatusForbidden, "invite_revoked"
	case errors.Is(err, invite.ErrExpired):
		return http.StatusGone, "invite_expired"
	case errors.Is(err, planning.ErrNotFound), errors.Is(err, invite.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, planning.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, planning.ErrSessionFinalized):
		return http.StatusConflict, "session_finalized"
	case errors.Is(err, planning.ErrSessionArchived):
		return http.StatusConflict, "session_archived"
	case errors.Is(err, planning.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, planning.ErrStorage):
		return http.StatusServiceUnavailable, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeServiceError(log *slog.Logger, w http.ResponseWriter, err error) {
	status, code := serviceError(err)
	if status >= http.StatusInternalServerError {
		log.Error("api.request.fail", "code", code, "err", err)
	}
	writeError(log, w, status, code, err.Error())
}
