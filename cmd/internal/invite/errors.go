package invite

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("invite not found")
	ErrExpired      = errors.New("invite expired")
	ErrRevoked      = errors.New("invite revoked")
)
