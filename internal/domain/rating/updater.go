package rating

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
)

// Store is the slice of the session store the updater needs.
type Store interface {
	GetUserRatings(ctx context.Context, userIDs []string) (map[string]int, error)
	// BatchUpdateRatings applies every change or none. It fails with a
	// conflict when a user's rating no longer equals Old and with
	// model.ErrRatingsApplied when the session is no longer rating-pending.
	BatchUpdateRatings(ctx context.Context, batch model.RatingBatch) error
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithRetryPolicy overrides the retry policy for conflicts and outages.
func WithRetryPolicy(p retry.Policy) UpdaterOption {
	return func(u *Updater) { u.policy = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLogger sets the updater logger.
func WithLogger(l logger.Logger) UpdaterOption {
	return func(u *Updater) {
		if l != nil {
			u.log = l
		}
	}
}

// Updater turns a completed ranked session into an atomic rating batch.
type Updater struct {
	store  Store
	model  *Model
	policy retry.Policy
	now    func() time.Time
	log    logger.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(store Store, m *Model, opts ...UpdaterOption) *Updater {
	u := &Updater{
		store:  store,
		model:  m,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update applies the session outcome. It returns the committed changes, or
// nil when the ratings were already applied by an earlier call. Any failure
// is reported as model.ErrRatingUpdateFailed; the session stays pending.
func (u *Updater) Update(ctx context.Context, s model.Session) ([]model.RatingChange, error) {
	const op = "rating.update"
	if s.Outcome == nil {
		return nil, model.Errorf(op, model.ErrValidation, "session %s has no outcome", s.ID)
	}
	users := s.Outcome.Users()

	var committed []model.RatingChange
	err := u.policy.Do(ctx, func(attempt int) error {
		current, err := u.store.GetUserRatings(ctx, users)
		if err != nil {
			return err
		}
		next, err := u.model.Apply(current, *s.Outcome)
		if err != nil {
			return model.WrapKind(op, model.ErrValidation, err)
		}
		at := u.now().UTC()
		changes := make([]model.RatingChange, 0, len(users))
		for _, id := range users {
			if _, ok := next[id]; !ok {
				return model.Errorf(op, model.ErrValidation, "no new rating for %s", id)
			}
			changes = append(changes, model.RatingChange{
				ID:        ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
				UserID:    id,
				SessionID: s.ID,
				Old:       current[id],
				New:       next[id],
				At:        at,
			})
		}
		if err := u.store.BatchUpdateRatings(ctx, model.RatingBatch{SessionID: s.ID, Changes: changes}); err != nil {
			return err
		}
		committed = changes
		return nil
	}, model.Retryable, func(attempt int, err error) {
		u.log.Debug(ctx, "rating batch retry", logger.String("session_id", s.ID), logger.Int("attempt", attempt), logger.Error(err))
	})

	switch {
	case err == nil:
		return committed, nil
	case errors.Is(err, model.ErrRatingsApplied):
		return nil, nil
	default:
		u.log.Warn(ctx, "rating batch failed", logger.String("session_id", s.ID), logger.Error(err))
		return nil, model.WrapKind(op, model.ErrRatingUpdateFailed, err)
	}
}
