// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/elliotchance/pie/v2"
)

// SessionType classifies what players will do on court.
type SessionType string

const (
	TypeHittingPartner SessionType = "hitting_partner"
	TypeDrills         SessionType = "drills"
	TypePracticeMatch  SessionType = "practice_match"
	TypeRankedMatch    SessionType = "ranked_match"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case TypeHittingPartner, TypeDrills, TypePracticeMatch, TypeRankedMatch:
		return true
	}
	return false
}

// State is a session lifecycle state.
type State string

const (
	StateDraft      State = "draft"
	StateOpen       State = "open"
	StateFull       State = "full"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Role of a participant within a session.
type Role string

const (
	RoleCreator Role = "creator"
	RoleJoiner  Role = "joiner"
)

// SkillRange is an inclusive range on the 1.0-7.0 skill level scale.
type SkillRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Overlaps reports whether any level lies in both ranges.
func (r SkillRange) Overlaps(o SkillRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// Venue is where the session is played.
type Venue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Participant is one user's participation record.
type Participant struct {
	UserID   string     `json:"user_id"`
	Role     Role       `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// Session is a scheduled tennis session.
type Session struct {
	ID            string        `json:"id"`
	CreatorID     string        `json:"creator_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Type          SessionType   `json:"type"`
	StartsAt      time.Time     `json:"starts_at"`
	Duration      time.Duration `json:"duration"`
	Venue         Venue         `json:"venue"`
	Skill         SkillRange    `json:"skill"`
	Capacity      int           `json:"capacity"`
	CostPerPerson float64       `json:"cost_per_person"`
	State         State         `json:"state"`
	Participants  []Participant `json:"participants"`
	Outcome       *Outcome      `json:"outcome,omitempty"`
	RatingPending bool          `json:"rating_pending"`
	Version       uint64        `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
}

// Clone returns a deep copy safe to mutate.
func (s Session) Clone() Session {
	out := s
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		if p.ClosedAt != nil {
			t := *p.ClosedAt
			p.ClosedAt = &t
		}
		out.Participants[i] = p
	}
	if s.Outcome != nil {
		o := s.Outcome.Clone()
		out.Outcome = &o
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		out.CancelledAt = &t
	}
	return out
}

// ParticipantIDs returns participant user ids in join order.
func (s Session) ParticipantIDs() []string {
	return pie.Map(s.Participants, func(p Participant) string { return p.UserID })
}

// HasParticipant reports whether userID participates.
func (s Session) HasParticipant(userID string) bool {
	return pie.Contains(s.ParticipantIDs(), userID)
}

// Joiners counts non-creator participants.
func (s Session) Joiners() int {
	return len(pie.Filter(s.Participants, func(p Participant) bool { return p.Role != RoleCreator }))
}

// FreeSeats is the number of seats still available.
func (s Session) FreeSeats() int {
	return s.Capacity - len(s.Participants)
}

// EndsAt is the scheduled end of play.
func (s Session) EndsAt() time.Time {
	return s.StartsAt.Add(s.Duration)
}

// EffectiveState derives the lazily computed state at now. Open or Full
// sessions whose start time has passed with at least one joiner are in progress.
func (s Session) EffectiveState(now time.Time) State {
	if (s.State == StateOpen || s.State == StateFull) && !now.Before(s.StartsAt) && s.Joiners() > 0 {
		return StateInProgress
	}
	return s.State
}

// SessionFilter narrows ListSessions. Zero values mean "any".
type SessionFilter struct {
	Type          SessionType
	State         State
	SkillLevel    *float64
	Band          *SkillRange
	From          time.Time
	To            time.Time
	CreatorID     string
	ParticipantID string
	RatingPending bool
	Limit         int
	// At is the instant effective states are evaluated at. Zero means now.
	At time.Time
}

// Now returns At, or the wall clock when At is unset.
func (f SessionFilter) Now() time.Time {
	if f.At.IsZero() {
		return time.Now().UTC()
	}
	return f.At
}

// Match reports whether s satisfies the filter at now.
func (f SessionFilter) Match(s Session, now time.Time) bool {
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.State != "" && s.EffectiveState(now) != f.State {
		return false
	}
	if f.SkillLevel != nil && (*f.SkillLevel < s.Skill.Min || *f.SkillLevel > s.Skill.Max) {
		return false
	}
	if f.Band != nil && !s.Skill.Overlaps(*f.Band) {
		return false
	}
	if !f.From.IsZero() && s.StartsAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.StartsAt.Before(f.To) {
		return false
	}
	if f.CreatorID != "" && s.CreatorID != f.CreatorID {
		return false
	}
	if f.ParticipantID != "" && !s.HasParticipant(f.ParticipantID) {
		return false
	}
	if f.RatingPending && !s.RatingPending {
		return false
	}
	return true
}

// SortSessions orders by start time then id.
func SortSessions(in []Session) []Session {
	return pie.SortUsing(in, func(a, b Session) bool {
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		return a.ID < b.ID
	})
}
