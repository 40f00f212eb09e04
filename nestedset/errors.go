package nestedset

import "errors"

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrInvalidMove         = errors.New("invalid move")
	ErrIntegrityViolation  = errors.New("nested set integrity violation")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)
