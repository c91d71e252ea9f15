package domain

import "errors"

// Sentinel errors. Use errors.Is to check: errors.Is(err, domain.ErrNotFound)
var (
	ErrInvalidGrade    = errors.New("flashback: invalid grade")
	ErrIndexOutOfRange = errors.New("flashback: index out of range")
	ErrNotFound        = errors.New("flashback: not found")
)
