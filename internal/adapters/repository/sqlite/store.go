// Package sqlite implements repository.Store on SQLite (modernc.org/sqlite,
// pure Go). Session mutations are version-conditioned UPDATEs and rating
// batches run in a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

const (
	backend     = "sqlite"
	timeLayout  = "2006-01-02T15:04:05.000000000Z07:00" // fixed width, sorts as text
	busyTimeout = 5000
)

// Store is a SQLite-backed repository.Store.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
	now    func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the database at dsn and applies the schema.
// ":memory:" yields a private in-memory database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer. A single connection also keeps ":memory:"
	// databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dsn, sep, busyTimeout)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type txFunc func(tx *sql.Tx) error

// withTransaction runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTransaction(ctx context.Context, fn txFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return repository.ErrClosed
	}
	return nil
}

func observe(call string, start time.Time, err *error) {
	metrics.RecordStoreLatency(backend, call, float64(time.Since(start).Microseconds())/1000)
	if *err != nil {
		switch {
		case errors.Is(*err, repository.ErrConflict):
			metrics.RecordStoreError(backend, "conflict")
		case errors.Is(*err, repository.ErrUnavailable):
			metrics.RecordStoreError(backend, "unavailable")
		}
	}
}

func (s *Store) CreateSession(ctx context.Context, sess model.Session) (err error) {
	defer observe("create_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, version, type, creator_id, starts_at, rating_pending, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Version, string(sess.Type), sess.CreatorID,
		sess.StartsAt.UTC().Format(timeLayout), sess.RatingPending, string(doc))
	return mapError(err)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSession(ctx context.Context, q queryer, id string) (model.Session, error) {
	var doc string
	if err := q.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE id = ?`, id).Scan(&doc); err != nil {
		return model.Session{}, mapError(err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer observe("get_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return model.Session{}, err
	}
	return getSession(ctx, s.db, id)
}

func (s *Store) CompareAndSwapSession(ctx context.Context, next model.Session, expected uint64) (err error) {
	defer observe("cas_session", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET version = ?, starts_at = ?, rating_pending = ?, doc = ?
			 WHERE id = ? AND version = ?`,
			next.Version, next.StartsAt.UTC().Format(timeLayout), next.RatingPending, string(doc),
			next.ID, expected)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 1 {
			return nil
		}
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, next.ID).Scan(&one); err != nil {
			return err
		}
		return repository.ErrConflict
	})
}

func (s *Store) Rank(ctx context.Context, userID string) (rank int, err error) {
	defer observe("rank", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return 0, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users AS o WHERE o.elo > u.elo) + 1 FROM users AS u WHERE u.id = ?`,
		userID).Scan(&rank)
	if err != nil {
		return 0, mapError(err)
	}
	return rank, nil
}

func (s *Store) CountRatingPending(ctx context.Context) (n int, err error) {
	defer observe("count_rating_pending", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE rating_pending = 1`).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *Store) ListSessions(ctx context.Context, f model.SessionFilter) (out []model.Session, err error) {
	defer observe("list_sessions", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT doc FROM sessions WHERE 1 = 1`
	var args []any
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.CreatorID != "" {
		query += ` AND creator_id = ?`
		args = append(args, f.CreatorID)
	}
	if f.RatingPending {
		query += ` AND rating_pending = 1`
	}
	if !f.From.IsZero() {
		query += ` AND starts_at >= ?`
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	query += ` ORDER BY starts_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	now := f.Now()
	out = make([]model.Session, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, mapError(err)
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(doc), &sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		// State and the remaining predicates depend on the clock and on
		// participants, so they are evaluated on the decoded document.
		if !f.Match(sess, now) {
			continue
		}
		out = append(out, sess)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return model.SortSessions(out), nil
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &u.SkillLevel, &u.Elo, &createdAt, &updatedAt); err != nil {
		return model.User{}, mapError(err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	u.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return u, nil
}

const userColumns = `id, display_name, skill_level, elo, created_at, updated_at`

func (s *Store) GetUser(ctx context.Context, id string) (u model.User, err error) {
	defer observe("get_user", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return model.User{}, err
	}
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) UpsertUser(ctx context.Context, u model.User, defaultElo int) (out model.User, err error) {
	defer observe("upsert_user", time.Now(), &err)
	if u.ID == "" {
		return model.User{}, repository.ErrInvalidUser
	}
	if err = s.ready(ctx); err != nil {
		return model.User{}, err
	}
	now := s.now().UTC().Format(timeLayout)
	err = s.withTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   display_name = excluded.display_name,
			   skill_level = excluded.skill_level,
			   updated_at = excluded.updated_at`,
			u.ID, u.DisplayName, u.SkillLevel, defaultElo, now, now); err != nil {
			return err
		}
		var scanErr error
		out, scanErr = scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, u.ID))
		return scanErr
	})
	return out, err
}

func (s *Store) GetUserRatings(ctx context.Context, ids []string) (out map[string]int, err error) {
	defer observe("get_ratings", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	out = make(map[string]int, len(ids))
	for _, id := range ids {
		var elo int
		if err := s.db.QueryRowContext(ctx, `SELECT elo FROM users WHERE id = ?`, id).Scan(&elo); err != nil {
			return nil, mapError(err)
		}
		out[id] = elo
	}
	return out, nil
}

func (s *Store) BatchUpdateRatings(ctx context.Context, b model.RatingBatch) (err error) {
	defer observe("batch_ratings", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return err
	}
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		sess, err := getSession(ctx, tx, b.SessionID)
		if err != nil {
			return err
		}
		if !sess.RatingPending {
			return model.ErrRatingsApplied
		}

		for _, c := range b.Changes {
			res, err := tx.ExecContext(ctx,
				`UPDATE users SET elo = ?, updated_at = ? WHERE id = ? AND elo = ?`,
				c.New, c.At.UTC().Format(timeLayout), c.UserID, c.Old)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				var one int
				if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, c.UserID).Scan(&one); err != nil {
					return err
				}
				return repository.ErrConflict
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rating_history (id, user_id, session_id, old_elo, new_elo, at) VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.UserID, c.SessionID, c.Old, c.New, c.At.UTC().Format(timeLayout)); err != nil {
				return err
			}
		}

		expected := sess.Version
		sess.RatingPending = false
		sess.Version++
		sess.UpdatedAt = s.now().UTC()
		doc, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET version = ?, rating_pending = 0, doc = ? WHERE id = ? AND version = ?`,
			sess.Version, string(doc), sess.ID, expected)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrConflict
		}
		return nil
	})
}

func (s *Store) RatingHistory(ctx context.Context, userID string, limit int) (out []model.RatingChange, err error) {
	defer observe("rating_history", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one); err != nil {
		return nil, mapError(err)
	}

	query := `SELECT id, user_id, session_id, old_elo, new_elo, at FROM rating_history
		WHERE user_id = ? ORDER BY at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out = make([]model.RatingChange, 0)
	for rows.Next() {
		var (
			c  model.RatingChange
			at string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.SessionID, &c.Old, &c.New, &at); err != nil {
			return nil, mapError(err)
		}
		c.At, _ = time.Parse(timeLayout, at)
		out = append(out, c)
	}
	return out, mapError(rows.Err())
}

func (s *Store) TopRated(ctx context.Context, n int) (out []model.LeaderboardEntry, err error) {
	defer observe("top_rated", time.Now(), &err)
	if err = s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, elo FROM users ORDER BY elo DESC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out = make([]model.LeaderboardEntry, 0, n)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Elo); err != nil {
			return nil, mapError(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	repository.AssignRanks(out)
	return out, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.db.PingContext(ctx))
}

// Backend names the storage engine.
func (s *Store) Backend() string { return backend }

// Close closes the database. Later calls fail with repository.ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)
