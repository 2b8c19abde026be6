// Package repository defines the session store contract and its in-memory
// implementation. Durable backends live in the sqlite and dynamo subpackages.
package repository

import (
	"context"

	"github.com/okian/courtside/internal/domain/model"
)

// Store provides versioned access to sessions, users and ratings.
type Store interface {
	// CreateSession inserts a new session. Fails with ErrDuplicate if the id exists.
	CreateSession(ctx context.Context, s model.Session) error
	// GetSession returns the session and its current Version.
	GetSession(ctx context.Context, id string) (model.Session, error)
	// CompareAndSwapSession replaces the session only when the stored
	// version equals expected. next.Version must be expected+1.
	CompareAndSwapSession(ctx context.Context, next model.Session, expected uint64) error
	// ListSessions returns matching sessions ordered by start time then id.
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error)

	GetUser(ctx context.Context, id string) (model.User, error)
	// UpsertUser stores profile fields. New users start at defaultElo; an
	// existing user's Elo and CreatedAt are never changed by an upsert.
	UpsertUser(ctx context.Context, u model.User, defaultElo int) (model.User, error)
	// GetUserRatings returns the Elo of every id, or ErrNotFound.
	GetUserRatings(ctx context.Context, ids []string) (map[string]int, error)
	// BatchUpdateRatings applies all changes, appends history and clears
	// the session's RatingPending flag, or changes nothing.
	BatchUpdateRatings(ctx context.Context, b model.RatingBatch) error
	// RatingHistory returns a user's entries, newest first.
	RatingHistory(ctx context.Context, userID string, limit int) ([]model.RatingChange, error)
	// TopRated returns the Elo ladder head.
	TopRated(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	// Rank returns a user's competition rank on the Elo ladder.
	Rank(ctx context.Context, userID string) (int, error)
	// CountRatingPending counts sessions whose rating batch has not landed.
	CountRatingPending(ctx context.Context) (int, error)

	Close() error
}
