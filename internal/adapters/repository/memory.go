package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/metrics"
)

const backendMemory = "memory"

// MemoryStore is an in-process Store. A single mutex serializes writes, so
// compare-and-swap and rating batches are trivially atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	users    map[string]model.User
	history  map[string][]model.RatingChange
	ladder   *Ladder
	closed   bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		users:    make(map[string]model.User),
		history:  make(map[string][]model.RatingChange),
		ladder:   NewLadder(),
	}
}

func observe(call string, start time.Time) {
	metrics.RecordStoreLatency(backendMemory, call, float64(time.Since(start).Microseconds())/1000)
}

// ready checks ctx and lifecycle before any effect is applied.
func (m *MemoryStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, s model.Session) error {
	defer observe("create_session", time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return err
	}
	if _, ok := m.sessions[s.ID]; ok {
		return ErrDuplicate
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	defer observe("get_session", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(ctx); err != nil {
		return model.Session{}, err
	}
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CompareAndSwapSession(ctx context.Context, next model.Session, expected uint64) error {
	defer observe("cas_session", time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return err
	}
	cur, ok := m.sessions[next.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expected {
		metrics.RecordStoreError(backendMemory, "conflict")
		return ErrConflict
	}
	m.sessions[next.ID] = next.Clone()
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.Session, error) {
	defer observe("list_sessions", time.Now())
	m.mu.RLock()
	if err := m.ready(ctx); err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	now := f.Now()
	out := make([]model.Session, 0)
	for _, s := range m.sessions {
		if f.Match(s, now) {
			out = append(out, s.Clone())
		}
	}
	m.mu.RUnlock()

	out = model.SortSessions(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountRatingPending(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range m.sessions {
		if s.RatingPending {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(ctx); err != nil {
		return model.User{}, err
	}
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UpsertUser(ctx context.Context, u model.User, defaultElo int) (model.User, error) {
	defer observe("upsert_user", time.Now())
	if u.ID == "" {
		return model.User{}, ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC()
	cur, ok := m.users[u.ID]
	if !ok {
		cur = model.User{ID: u.ID, Elo: defaultElo, CreatedAt: now}
	}
	cur.DisplayName = u.DisplayName
	cur.SkillLevel = u.SkillLevel
	cur.UpdatedAt = now
	m.users[u.ID] = cur
	m.ladder.Set(cur.ID, cur.Elo)
	metrics.UpdateLeaderboardSize(m.ladder.Len())
	return cur, nil
}

func (m *MemoryStore) GetUserRatings(ctx context.Context, ids []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		u, ok := m.users[id]
		if !ok {
			return nil, ErrNotFound
		}
		out[id] = u.Elo
	}
	return out, nil
}

func (m *MemoryStore) BatchUpdateRatings(ctx context.Context, b model.RatingBatch) error {
	defer observe("batch_ratings", time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return err
	}
	s, ok := m.sessions[b.SessionID]
	if !ok {
		return ErrNotFound
	}
	if !s.RatingPending {
		return model.ErrRatingsApplied
	}
	for _, c := range b.Changes {
		u, ok := m.users[c.UserID]
		if !ok {
			return ErrNotFound
		}
		if u.Elo != c.Old {
			metrics.RecordStoreError(backendMemory, "conflict")
			return ErrConflict
		}
	}
	for _, c := range b.Changes {
		u := m.users[c.UserID]
		u.Elo = c.New
		u.UpdatedAt = c.At
		m.users[c.UserID] = u
		m.history[c.UserID] = append(m.history[c.UserID], c)
		m.ladder.Set(c.UserID, c.New)
	}
	s.RatingPending = false
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) RatingHistory(ctx context.Context, userID string, limit int) ([]model.RatingChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	if _, ok := m.users[userID]; !ok {
		return nil, ErrNotFound
	}
	h := m.history[userID]
	out := make([]model.RatingChange, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, h[i])
	}
	return out, nil
}

func (m *MemoryStore) TopRated(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	defer observe("top_rated", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	top := m.ladder.Top(n)
	m.mu.RLock()
	for i := range top {
		top[i].DisplayName = m.users[top[i].UserID].DisplayName
	}
	m.mu.RUnlock()
	return top, nil
}

// Rank returns the competition rank of a user on the Elo ladder.
func (m *MemoryStore) Rank(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r, ok := m.ladder.Rank(userID)
	if !ok {
		return 0, ErrNotFound
	}
	return r, nil
}

// Count returns the number of sessions and users held.
func (m *MemoryStore) Count() (sessions, users int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), len(m.users)
}

// Backend names the storage engine.
func (m *MemoryStore) Backend() string { return backendMemory }

// Close marks the store closed; later calls fail with ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
