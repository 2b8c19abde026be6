package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
)

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case model.KindOf(err) != nil, errors.Is(err, model.ErrRatingsApplied):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", repository.ErrClosed, err)
	}

	// Everything else (busy, locked, I/O) is treated as transient.
	msg := err.Error()
	if containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY") {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, msg)
	}
	return fmt.Errorf("%w: %s", repository.ErrUnavailable, msg)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
