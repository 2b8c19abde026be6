package model

import "time"

// User is a player profile. The identity provider owns ID; the engine owns
// SkillLevel and Elo.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	SkillLevel  float64   `json:"skill_level"`
	Elo         int       `json:"elo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RatingChange is one audit entry written per user by a rating batch.
type RatingChange struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Old       int       `json:"old"`
	New       int       `json:"new"`
	At        time.Time `json:"at"`
}

// Delta is New minus Old.
func (c RatingChange) Delta() int { return c.New - c.Old }

// RatingBatch is applied by the store atomically: every user's Elo must still
// equal Old, and the session must still be rating-pending.
type RatingBatch struct {
	SessionID string
	Changes   []RatingChange
}

// LeaderboardEntry is one row of the Elo ladder.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Elo         int    `json:"elo"`
}
