// Package rating computes Elo rating changes for ranked matches and applies
// them to the store as one atomic batch.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/courtside/internal/domain/model"
)

// DefaultElo is the rating a new user starts at.
const DefaultElo = 1200

const (
	defaultKFactor = 32.0
	defaultFloor   = 100
	eloScale       = 400.0
)

// Option configures a Model.
type Option func(*Model)

// WithKFactor sets the maximum swing per comparison.
func WithKFactor(k float64) Option {
	return func(m *Model) {
		if k > 0 {
			m.k = k
		}
	}
}

// WithFloor sets the lowest rating a player can reach.
func WithFloor(floor int) Option {
	return func(m *Model) {
		if floor >= 0 {
			m.floor = floor
		}
	}
}

// Model is the pure Elo calculator. It holds no state besides configuration.
type Model struct {
	k     float64
	floor int
}

// NewModel returns a Model with K=32 and floor 100 unless overridden.
func NewModel(opts ...Option) *Model {
	m := &Model{k: defaultKFactor, floor: defaultFloor}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// KFactor returns the configured K.
func (m *Model) KFactor() float64 { return m.k }

// Floor returns the configured rating floor.
func (m *Model) Floor() int { return m.floor }

// Expected is the expected score of a player rated ra against rb.
func Expected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/eloScale))
}

// Delta is A's unrounded change for score (1 win, 0.5 draw, 0 loss). B's is the negation.
func (m *Model) Delta(ra, rb int, score float64) float64 {
	return m.k * (score - Expected(ra, rb))
}

// Deltas returns each named user's summed, unrounded change. Every
// comparison uses the ratings as they were before the match. Users with no
// opponent get a zero delta.
func (m *Model) Deltas(ratings map[string]int, o model.Outcome) (map[string]float64, error) {
	for _, u := range o.Users() {
		if _, ok := ratings[u]; !ok {
			return nil, fmt.Errorf("rating: no current rating for %q", u)
		}
	}
	out := make(map[string]float64, len(o.Users()))
	for _, u := range o.Users() {
		out[u] = 0
	}
	pair := func(a, b string, score float64) {
		d := m.Delta(ratings[a], ratings[b], score)
		out[a] += d
		out[b] -= d
	}
	switch o.Kind {
	case model.OutcomePairwise:
		score := 1.0
		if o.Draw {
			score = 0.5
		}
		pair(o.Winner, o.Loser, score)
	case model.OutcomeRanked:
		for i := 0; i < len(o.Placements); i++ {
			for j := i + 1; j < len(o.Placements); j++ {
				pair(o.Placements[i], o.Placements[j], 1)
			}
		}
	default:
		return nil, fmt.Errorf("rating: unknown outcome kind %q", o.Kind)
	}
	return out, nil
}

// Apply returns the new rating of every user named by o. Summed deltas are
// rounded once and the result is clamped to the floor.
func (m *Model) Apply(ratings map[string]int, o model.Outcome) (map[string]int, error) {
	deltas, err := m.Deltas(ratings, o)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(deltas))
	for u, d := range deltas {
		next := ratings[u] + int(math.Round(d))
		if next < m.floor {
			next = m.floor
		}
		out[u] = next
	}
	return out, nil
}
