package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrOutOfBounds      = errors.New("location outside map bounds")
	ErrDegenerateBounds = errors.New("degenerate geo bounds")
	ErrInvalidImage     = errors.New("invalid image dimensions")
	ErrSessionNotFound  = errors.New("map session not found")
	ErrUnavailable      = errors.New("service unavailable")
)
