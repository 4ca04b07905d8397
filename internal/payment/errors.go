package payment

import "errors"

var (
	ErrDuplicateID       = errors.New("transaction id already exists")
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
