// Package booking implements the session lifecycle: creation, seat
// allocation, departures, cancellation and completion. Every mutation is a
// read-compute-compare-and-swap against the store, retried on conflict.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

const defaultMaxList = 100

// Store is the session persistence contract the engine relies on.
type Store interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	// CompareAndSwapSession writes next only if the stored version equals
	// expected; otherwise it fails with a store conflict.
	CompareAndSwapSession(ctx context.Context, next model.Session, expected uint64) error
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error)
	GetUser(ctx context.Context, id string) (model.User, error)
}

// Engine runs booking operations.
type Engine struct {
	store   Store
	bounds  eligibility.Bounds
	policy  retry.Policy
	now     func() time.Time
	newID   func() string
	maxList int
	log     logger.Logger
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		bounds:  eligibility.DefaultBounds,
		policy:  retry.DefaultPolicy(),
		now:     time.Now,
		newID:   uuid.NewString,
		maxList: defaultMaxList,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock reading in UTC.
func (e *Engine) Now() time.Time { return e.now().UTC() }

// CreateSession validates the request and persists a new session with the creator seated.
func (e *Engine) CreateSession(ctx context.Context, spec CreateSpec) (model.Session, error) {
	const op = "booking.create"
	now := e.Now()
	if err := spec.Validate(op, now, e.bounds); err != nil {
		return model.Session{}, err
	}
	if _, err := e.store.GetUser(ctx, spec.CreatorID); err != nil {
		return model.Session{}, e.classify(ctx, op, err)
	}
	s := newSession(e.newID(), spec, now)
	err := e.policy.Do(ctx, func(int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.store.CreateSession(ctx, s)
	}, func(err error) bool { return errors.Is(err, model.ErrStoreUnavailable) }, nil)
	if err != nil {
		return model.Session{}, e.classify(ctx, op, err)
	}
	metrics.RecordSessionCreated(string(s.Type))
	e.log.Info(ctx, "session created", logger.String("session_id", s.ID), logger.String("creator_id", s.CreatorID),
		logger.String("type", string(s.Type)), logger.String("state", string(s.State)))
	return s, nil
}

// PublishSession opens a draft for joining.
func (e *Engine) PublishSession(ctx context.Context, id, actorID string) (model.Session, error) {
	return e.mutate(ctx, "booking.publish", id, func(s model.Session, now time.Time) (model.Session, error) {
		return publish(s, actorID, now)
	})
}

// JoinSession seats userID. Under concurrent joins at most Capacity
// participants are ever admitted.
func (e *Engine) JoinSession(ctx context.Context, id, userID string) (model.Session, error) {
	const op = "booking.join"
	if _, err := e.store.GetSession(ctx, id); err != nil {
		return model.Session{}, e.classify(ctx, op, err)
	}
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return model.Session{}, e.classify(ctx, op, err)
	}
	s, err := e.mutate(ctx, op, id, func(s model.Session, now time.Time) (model.Session, error) {
		return join(s, u, now)
	})
	if err == nil {
		metrics.RecordSeatTaken()
	}
	return s, err
}

// LeaveSession removes a non-creator participant.
func (e *Engine) LeaveSession(ctx context.Context, id, userID string) (model.Session, error) {
	s, err := e.mutate(ctx, "booking.leave", id, func(s model.Session, now time.Time) (model.Session, error) {
		return leave(s, userID, now)
	})
	if err == nil {
		metrics.RecordSeatReleased()
	}
	return s, err
}

// CancelSession moves a non-terminal session to Cancelled.
func (e *Engine) CancelSession(ctx context.Context, id, actorID string) (model.Session, error) {
	s, err := e.mutate(ctx, "booking.cancel", id, func(s model.Session, now time.Time) (model.Session, error) {
		return cancel(s, actorID, now)
	})
	if err == nil {
		metrics.RecordSessionFinished(string(model.StateCancelled))
	}
	return s, err
}

// CompleteSession marks the session Completed. Ranked matches store the
// outcome and are left rating-pending for the rating updater.
func (e *Engine) CompleteSession(ctx context.Context, id, actorID string, outcome *model.Outcome) (model.Session, error) {
	s, err := e.mutate(ctx, "booking.complete", id, func(s model.Session, now time.Time) (model.Session, error) {
		return complete(s, actorID, outcome, now)
	})
	if err == nil {
		metrics.RecordSessionFinished(string(model.StateCompleted))
	}
	return s, err
}

// GetSession returns a snapshot with its effective state.
func (e *Engine) GetSession(ctx context.Context, id string) (model.Session, error) {
	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, e.classify(ctx, "booking.get", err)
	}
	s.State = s.EffectiveState(e.Now())
	return s, nil
}

// ListSessions returns matching snapshots ordered by start time.
func (e *Engine) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error) {
	if f.Limit <= 0 || f.Limit > e.maxList {
		f.Limit = e.maxList
	}
	now := e.Now()
	f.At = now
	out, err := e.store.ListSessions(ctx, f)
	if err != nil {
		return nil, e.classify(ctx, "booking.list", err)
	}
	for i := range out {
		out[i].State = out[i].EffectiveState(now)
	}
	return out, nil
}

// mutate is the read-modify-CAS loop shared by every state change.
func (e *Engine) mutate(ctx context.Context, op, id string, fn func(model.Session, time.Time) (model.Session, error)) (model.Session, error) {
	var out model.Session
	err := e.policy.Do(ctx, func(int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur, err := e.store.GetSession(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(cur.Clone(), e.Now())
		if err != nil {
			return err
		}
		next.Version = cur.Version + 1
		if err := e.store.CompareAndSwapSession(ctx, next, cur.Version); err != nil {
			if errors.Is(err, model.ErrStoreConflict) {
				metrics.RecordCASConflict(op)
			}
			return err
		}
		out = next
		return nil
	}, model.Retryable, func(attempt int, err error) {
		metrics.RecordCASRetry()
		e.log.Debug(ctx, "retrying session write", logger.String("op", op), logger.String("session_id", id),
			logger.Int("attempt", attempt), logger.Error(err))
	})
	if err != nil {
		return model.Session{}, e.classify(ctx, op, err)
	}
	return out, nil
}

// classify maps store and context failures onto engine error kinds.
func (e *Engine) classify(ctx context.Context, op string, err error) error {
	if err != nil && model.KindOf(err) == nil && ctx.Err() == nil &&
		!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		e.log.Error(ctx, "unclassified store error", logger.String("op", op), logger.Error(err))
	}
	return Classify(ctx, op, err)
}

// Classify maps a store or context failure onto an engine error kind.
// Errors that already carry an engine op are returned unchanged; anything
// unrecognised is reported as store unavailable.
func Classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return model.WrapKind(op, model.ErrTimeout, err)
	}
	if k := model.KindOf(err); k != nil {
		return model.WrapKind(op, k, err)
	}
	return model.WrapKind(op, model.ErrStoreUnavailable, err)
}
