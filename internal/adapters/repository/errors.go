package repository

import (
	"fmt"

	"github.com/okian/courtside/internal/domain/model"
)

// Sentinel store errors. Each wraps the engine error kind it maps to, so
// callers can match either the store sentinel or the domain kind.
var (
	ErrNotFound    = fmt.Errorf("record not found: %w", model.ErrNotFound)
	ErrConflict    = fmt.Errorf("version conflict: %w", model.ErrStoreConflict)
	ErrUnavailable = fmt.Errorf("store unavailable: %w", model.ErrStoreUnavailable)
	ErrDuplicate   = fmt.Errorf("duplicate record: %w", model.ErrStoreConflict)
	ErrInvalidUser = fmt.Errorf("invalid user: %w", model.ErrValidation)
	ErrClosed      = fmt.Errorf("store closed: %w", model.ErrStoreUnavailable)
)
