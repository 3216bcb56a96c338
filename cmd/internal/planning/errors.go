package planning

import "errors"

// Stable error taxonomy for callers. HTTP/status mapping lives at the API edge.
var (
	// ErrValidation indicates malformed or missing caller input. Never retried.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate indicates a creation collided with an existing unique key.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrUnauthorized indicates a role or membership check failed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition indicates a session lifecycle violation.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSessionFinalized indicates a mutation against a finalized session.
	ErrSessionFinalized = errors.New("session finalized")
	// ErrSessionArchived indicates a mutation against an archived session.
	ErrSessionArchived = errors.New("session archived")
	// ErrStorage wraps backend unavailability; safe to retry with backoff.
	ErrStorage = errors.New("storage unavailable")
)
