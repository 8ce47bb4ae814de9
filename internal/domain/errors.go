package domain

import "errors"

var (
	// ErrNotFound covers both a truly absent record and an ownership
	// mismatch. Callers at the HTTP boundary must not distinguish the two.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("duplicate identifier")
)
