package repository

import "github.com/okian/puckcast/internal/domain/model"

// Sentinel kinds returned by every Store implementation.
var (
	ErrNotFound = model.ErrNotFound
	ErrConflict = model.ErrConflict
)
