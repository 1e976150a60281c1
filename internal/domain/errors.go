package domain

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrFormat     = errors.New("unrecognized format")
	ErrState      = errors.New("invalid state")
	ErrNotFound   = errors.New("not found")
	ErrService    = errors.New("generation service failure")
)
