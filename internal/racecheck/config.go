// Package racecheck races many users for the seats of one session over the
// HTTP API and verifies that capacity is never exceeded.
package racecheck

import (
	"errors"
	"time"
)

// Errors reported by a run.
var (
	ErrUnhealthy          = errors.New("service is not healthy")
	ErrCapacityViolated   = errors.New("capacity invariant violated")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Config holds configuration for a race.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of users racing for seats
	Capacity int           // Session capacity, creator included
	Workers  int           // Number of concurrent join workers
	Timeout  time.Duration // HTTP request timeout
	Secret   string        // JWT signing secret shared with the service
	Issuer   string        // Optional JWT issuer
	Verbose  bool          // Log every join result
}

// Stats holds race statistics.
type Stats struct {
	SessionID    string
	UsersCreated int
	Joined       int
	Rejected     int
	Failed       int
	Seated       int
	FinalState   string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

type userRequest struct {
	DisplayName string  `json:"display_name"`
	SkillLevel  float64 `json:"skill_level"`
}

type venue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type sessionRequest struct {
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Venue           venue     `json:"venue"`
	SkillBand       string    `json:"skill_band"`
	Capacity        int       `json:"capacity"`
}

type participant struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type session struct {
	ID           string        `json:"id"`
	State        string        `json:"state"`
	Capacity     int           `json:"capacity"`
	Participants []participant `json:"participants"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
