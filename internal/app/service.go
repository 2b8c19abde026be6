// Package service is the engine facade: it wires the session store, the
// booking engine, the rating updater and the notification pipeline, and
// exposes the operations the HTTP API calls.
package service

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/courtside/internal/adapters/mq/queue"
	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/notify"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/booking"
	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/rating"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

const (
	tracerName             = "courtside"
	defaultLeaderboardSize = 10
	maxDisplayNameLen      = 80
)

// ErrNotStarted is returned by Stop when Start was never called.
var ErrNotStarted = errors.New("service not started")

// Dispatcher accepts notifications after a transition commits. It never
// blocks and never reports failure to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification)
}

// Service implements the operations exposed over HTTP.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	engine     *booking.Engine
	updater    *rating.Updater
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	notifier   worker.Notifier
	dispatcher Dispatcher

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	policy         retry.Policy
	bounds         eligibility.Bounds
	ratingModel    *rating.Model
	defaultElo     int
	maxList        int
	maxLeaderboard int
	now            func() time.Time
	newID          func() string

	// State
	started bool

	logger logger.Logger
	tracer trace.Tracer
}

// New constructs a Service over store. Notifications are buffered until Start.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		workerCount:    runtime.NumCPU(),
		queueSize:      10_000,
		dedupeSize:     50_000,
		policy:         retry.DefaultPolicy(),
		bounds:         eligibility.DefaultBounds,
		ratingModel:    rating.NewModel(),
		defaultElo:     rating.DefaultElo,
		maxList:        100,
		maxLeaderboard: 100,
		now:            time.Now,
		logger:         logger.Nop(),
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	engineOpts := []booking.Option{
		booking.WithRetryPolicy(s.policy),
		booking.WithSkillBounds(s.bounds),
		booking.WithClock(s.now),
		booking.WithMaxListLimit(s.maxList),
		booking.WithLogger(s.logger.Named("booking")),
	}
	if s.newID != nil {
		engineOpts = append(engineOpts, booking.WithIDGenerator(s.newID))
	}
	s.engine = booking.New(store, engineOpts...)
	s.updater = rating.NewUpdater(store, s.ratingModel,
		rating.WithRetryPolicy(s.policy),
		rating.WithClock(s.now),
		rating.WithLogger(s.logger.Named("rating")),
	)

	if s.notifier == nil {
		s.notifier = notify.NewLog(s.logger.Named("notify"))
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, s.notifier,
		worker.WithWorkerCount(s.workerCount),
		worker.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
		worker.WithLogger(s.logger.Named("worker")),
	)
	if s.dispatcher == nil {
		s.dispatcher = &queueDispatcher{queue: s.queue, logger: s.logger}
	}
	return s
}

// Start launches the notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.pool.Start(ctx); err != nil {
		return err
	}
	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize))
	return nil
}

// Stop drains pending notifications and closes the store and the notifier.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	s.started = false

	var errs []error
	if err := s.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if c, ok := s.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info(ctx, "service stopped",
		logger.Int("delivered", int(s.pool.Delivered())),
		logger.Int("failed", int(s.pool.Failed())))
	return errors.Join(errs...)
}

// GetStats reports pipeline and store counters for /stats.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":                started,
		"workerCount":            s.workerCount,
		"queueSize":              s.queue.Len(),
		"queueCapacity":          s.queueSize,
		"queueClosed":            s.queue.IsClosed(),
		"notificationsDelivered": s.pool.Delivered(),
		"notificationsFailed":    s.pool.Failed(),
		"ratingKFactor":          s.ratingModel.KFactor(),
		"ratingFloor":            s.ratingModel.Floor(),
		"defaultElo":             s.defaultElo,
		"maxListLimit":           s.maxList,
		"maxLeaderboardLimit":    s.maxLeaderboard,
		"skillBounds":            []float64{s.bounds.Min, s.bounds.Max},
		"storeBackend":           backendName(s.store),
	}
	if counter, ok := s.store.(interface{ Count() (int, int) }); ok {
		sessions, users := counter.Count()
		stats["sessions"] = sessions
		stats["users"] = users
	}
	if pending, err := s.store.CountRatingPending(ctx); err == nil {
		stats["ratingPending"] = pending
		metrics.UpdateRatingPending(pending)
	}
	return stats
}

// Now returns the facade clock in UTC.
func (s *Service) Now() time.Time { return s.engine.Now() }

// CreateSession creates a session owned by spec.CreatorID.
func (s *Service) CreateSession(ctx context.Context, spec booking.CreateSpec) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "create_session", attribute.String("creator_id", spec.CreatorID), attribute.String("type", string(spec.Type)))
	defer func() { sc.end(err) }()

	out, err = s.engine.CreateSession(ctx, spec)
	if err != nil {
		return model.Session{}, err
	}
	s.notify(ctx, model.NotifySessionCreated, out, spec.CreatorID)
	return out, nil
}

// PublishSession opens a draft session for joining.
func (s *Service) PublishSession(ctx context.Context, id, actorID string) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "publish_session", attribute.String("session_id", id))
	defer func() { sc.end(err) }()

	out, err = s.engine.PublishSession(ctx, id, actorID)
	if err != nil {
		return model.Session{}, err
	}
	s.notify(ctx, model.NotifySessionPublished, out, actorID)
	return out, nil
}

// JoinSession seats userID in the session.
func (s *Service) JoinSession(ctx context.Context, id, userID string) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "join_session", attribute.String("session_id", id), attribute.String("user_id", userID))
	defer func() { sc.end(err) }()

	out, err = s.engine.JoinSession(ctx, id, userID)
	if err != nil {
		return model.Session{}, err
	}
	s.notify(ctx, model.NotifySessionJoined, out, userID)
	if out.State == model.StateFull {
		s.notify(ctx, model.NotifySessionFull, out, userID)
	}
	return out, nil
}

// LeaveSession removes userID from the session.
func (s *Service) LeaveSession(ctx context.Context, id, userID string) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "leave_session", attribute.String("session_id", id), attribute.String("user_id", userID))
	defer func() { sc.end(err) }()

	out, err = s.engine.LeaveSession(ctx, id, userID)
	if err != nil {
		return model.Session{}, err
	}
	s.notify(ctx, model.NotifySessionLeft, out, userID)
	return out, nil
}

// CancelSession cancels the session on behalf of its creator.
func (s *Service) CancelSession(ctx context.Context, id, actorID string) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "cancel_session", attribute.String("session_id", id))
	defer func() { sc.end(err) }()

	out, err = s.engine.CancelSession(ctx, id, actorID)
	if err != nil {
		return model.Session{}, err
	}
	s.notify(ctx, model.NotifySessionCancelled, out, actorID)
	return out, nil
}

// CompleteSession completes the session. For ranked matches the rating
// update runs before returning; if it fails the session stays Completed and
// rating-pending, and the error carries model.ErrRatingUpdateFailed.
func (s *Service) CompleteSession(ctx context.Context, id, actorID string, outcome *model.Outcome) (out model.Session, changes []model.RatingChange, err error) {
	ctx, sc := s.begin(ctx, "complete_session", attribute.String("session_id", id))
	defer func() { sc.end(err) }()

	out, err = s.engine.CompleteSession(ctx, id, actorID, outcome)
	if err != nil {
		return model.Session{}, nil, err
	}
	s.notify(ctx, model.NotifySessionCompleted, out, actorID)
	if !out.RatingPending {
		return out, nil, nil
	}
	return s.applyRatings(ctx, out, actorID)
}

// ReconcileRatings re-runs the rating update for a completed ranked session
// whose ratings are still pending. It succeeds without effect when nothing
// is pending.
func (s *Service) ReconcileRatings(ctx context.Context, id string) (out model.Session, changes []model.RatingChange, err error) {
	ctx, sc := s.begin(ctx, "reconcile_ratings", attribute.String("session_id", id))
	defer func() { sc.end(err) }()

	out, err = s.engine.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, nil, err
	}
	if !out.RatingPending {
		return out, nil, nil
	}
	return s.applyRatings(ctx, out, "")
}

func (s *Service) applyRatings(ctx context.Context, sess model.Session, actorID string) (model.Session, []model.RatingChange, error) {
	changes, err := s.updater.Update(ctx, sess)
	if err != nil {
		metrics.RecordRatingFailure()
		s.logger.Warn(ctx, "ratings pending reconciliation",
			logger.String("session_id", sess.ID), logger.Error(err))
		return sess, nil, err
	}
	if changes != nil {
		metrics.RecordRatingBatch(ratingDeltas(changes))
	}

	// The batch bumped the session version and cleared the pending flag.
	after, err := s.engine.GetSession(ctx, sess.ID)
	if err != nil {
		after = sess
		after.RatingPending = false
	}
	if changes != nil {
		s.notify(ctx, model.NotifyRatingsUpdated, after, actorID)
	}
	return after, changes, nil
}

func ratingDeltas(changes []model.RatingChange) []int {
	out := make([]int, len(changes))
	for i, c := range changes {
		out[i] = c.Delta()
	}
	return out
}

// GetSession returns a session snapshot.
func (s *Service) GetSession(ctx context.Context, id string) (out model.Session, err error) {
	ctx, sc := s.begin(ctx, "get_session", attribute.String("session_id", id))
	defer func() { sc.end(err) }()
	return s.engine.GetSession(ctx, id)
}

// ListSessions returns sessions matching f.
func (s *Service) ListSessions(ctx context.Context, f model.SessionFilter) (out []model.Session, err error) {
	ctx, sc := s.begin(ctx, "list_sessions")
	defer func() { sc.end(err) }()
	return s.engine.ListSessions(ctx, f)
}

// UpsertUser registers or updates a profile. Elo is never changed here.
func (s *Service) UpsertUser(ctx context.Context, u model.User) (out model.User, err error) {
	const op = "service.upsert_user"
	ctx, sc := s.begin(ctx, "upsert_user", attribute.String("user_id", u.ID))
	defer func() { sc.end(err) }()

	u.DisplayName = strings.TrimSpace(u.DisplayName)
	fields := map[string]string{}
	if u.ID == "" {
		fields["id"] = "is required"
	}
	switch {
	case u.DisplayName == "":
		fields["display_name"] = "is required"
	case len(u.DisplayName) > maxDisplayNameLen:
		fields["display_name"] = "is too long"
	}
	if !s.bounds.ValidLevel(u.SkillLevel) {
		fields["skill_level"] = "is outside the supported range"
	}
	if len(fields) > 0 {
		return model.User{}, model.Invalid(op, fields)
	}

	out, err = s.store.UpsertUser(ctx, u, s.defaultElo)
	if err != nil {
		return model.User{}, booking.Classify(ctx, op, err)
	}
	return out, nil
}

// GetUser returns a profile.
func (s *Service) GetUser(ctx context.Context, id string) (out model.User, err error) {
	ctx, sc := s.begin(ctx, "get_user", attribute.String("user_id", id))
	defer func() { sc.end(err) }()

	out, err = s.store.GetUser(ctx, id)
	if err != nil {
		return model.User{}, booking.Classify(ctx, "service.get_user", err)
	}
	return out, nil
}

// UserRank returns the user's competition rank on the Elo ladder.
func (s *Service) UserRank(ctx context.Context, id string) (rank int, err error) {
	ctx, sc := s.begin(ctx, "user_rank", attribute.String("user_id", id))
	defer func() { sc.end(err) }()

	rank, err = s.store.Rank(ctx, id)
	if err != nil {
		return 0, booking.Classify(ctx, "service.user_rank", err)
	}
	return rank, nil
}

// RatingHistory returns a user's rating changes, newest first.
func (s *Service) RatingHistory(ctx context.Context, userID string, limit int) (out []model.RatingChange, err error) {
	ctx, sc := s.begin(ctx, "rating_history", attribute.String("user_id", userID))
	defer func() { sc.end(err) }()

	if limit <= 0 || limit > s.maxList {
		limit = s.maxList
	}
	out, err = s.store.RatingHistory(ctx, userID, limit)
	if err != nil {
		return nil, booking.Classify(ctx, "service.rating_history", err)
	}
	return out, nil
}

// Leaderboard returns the top users by Elo with competition ranks.
func (s *Service) Leaderboard(ctx context.Context, limit int) (out []model.LeaderboardEntry, err error) {
	ctx, sc := s.begin(ctx, "leaderboard", attribute.Int("limit", limit))
	defer func() { sc.end(err) }()

	switch {
	case limit <= 0:
		limit = defaultLeaderboardSize
	case limit > s.maxLeaderboard:
		limit = s.maxLeaderboard
	}
	out, err = s.store.TopRated(ctx, limit)
	if err != nil {
		return nil, booking.Classify(ctx, "service.leaderboard", err)
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, kind model.NotificationKind, sess model.Session, actorID string) {
	s.dispatcher.Dispatch(ctx, model.NewNotification(kind, sess, actorID, s.Now()))
}

// queueDispatcher hands notifications to the bounded queue. Drops are
// counted by the queue and logged here.
type queueDispatcher struct {
	queue  *queue.InMemoryQueue
	logger logger.Logger
}

func (d *queueDispatcher) Dispatch(ctx context.Context, n model.Notification) {
	// The request context may end right after the response; delivery must not depend on it.
	if !d.queue.Enqueue(context.WithoutCancel(ctx), n) {
		reason := "queue_full"
		if d.queue.IsClosed() {
			reason = "queue_closed"
		}
		d.logger.Warn(ctx, "notification dropped",
			logger.String("id", n.ID), logger.String("kind", string(n.Kind)), logger.String("reason", reason))
	}
}

// scope ties an operation to its span and its metrics.
type scope struct {
	op    string
	span  trace.Span
	start time.Time
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, *scope) {
	ctx, span := s.tracer.Start(ctx, "service."+op, trace.WithAttributes(attrs...))
	return ctx, &scope{op: op, span: span, start: time.Now()}
}

func (sc *scope) end(err error) {
	result := "ok"
	if err != nil {
		result = model.CodeOf(err)
		sc.span.RecordError(err)
		sc.span.SetStatus(codes.Error, result)
	}
	sc.span.SetAttributes(attribute.String("result", result))
	sc.span.End()
	metrics.RecordOperation(sc.op, result, float64(time.Since(sc.start).Microseconds())/1000)
}

func backendName(st repository.Store) string {
	if n, ok := st.(interface{ Backend() string }); ok {
		return n.Backend()
	}
	return "custom"
}
