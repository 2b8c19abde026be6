package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/model"
)

// MaxRankedCapacity bounds ranked matches so one rating batch stays within
// a single store transaction.
const MaxRankedCapacity = 32

// CreateSpec carries the creator's input for a new session.
type CreateSpec struct {
	CreatorID     string
	Title         string
	Description   string
	Type          model.SessionType
	StartsAt      time.Time
	Duration      time.Duration
	Venue         model.Venue
	Skill         model.SkillRange
	Capacity      int
	CostPerPerson float64
	// Draft keeps the session hidden from joins until it is published.
	Draft bool
}

// Validate reports every offending field at once.
func (c CreateSpec) Validate(op string, now time.Time, bounds eligibility.Bounds) error {
	bad := map[string]string{}
	if strings.TrimSpace(c.Title) == "" {
		bad["title"] = "required"
	}
	if !c.Type.Valid() {
		bad["type"] = "must be one of hitting_partner, drills, practice_match, ranked_match"
	}
	if strings.TrimSpace(c.Venue.Name) == "" {
		bad["venue.name"] = "required"
	}
	if strings.TrimSpace(c.Venue.Address) == "" {
		bad["venue.address"] = "required"
	}
	if c.Skill.Min > c.Skill.Max {
		bad["skill"] = "min must not exceed max"
	} else if !bounds.ValidRange(c.Skill) {
		bad["skill"] = "range must lie within the skill scale"
	}
	switch {
	case c.Capacity < 1:
		bad["capacity"] = "must be at least 1"
	case c.Type == model.TypeRankedMatch && c.Capacity > MaxRankedCapacity:
		bad["capacity"] = fmt.Sprintf("ranked matches seat at most %d", MaxRankedCapacity)
	}
	if c.Duration <= 0 {
		bad["duration"] = "must be positive"
	}
	if !c.StartsAt.After(now) {
		bad["starts_at"] = "must be in the future"
	}
	if c.CostPerPerson < 0 {
		bad["cost_per_person"] = "must not be negative"
	}
	if len(bad) > 0 {
		return model.Invalid(op, bad)
	}
	return nil
}

// newSession builds the initial state with the creator seated.
func newSession(id string, c CreateSpec, now time.Time) model.Session {
	state := model.StateOpen
	if c.Draft {
		state = model.StateDraft
	}
	return model.Session{
		ID:            id,
		CreatorID:     c.CreatorID,
		Title:         strings.TrimSpace(c.Title),
		Description:   c.Description,
		Type:          c.Type,
		StartsAt:      c.StartsAt.UTC(),
		Duration:      c.Duration,
		Venue:         c.Venue,
		Skill:         c.Skill,
		Capacity:      c.Capacity,
		CostPerPerson: c.CostPerPerson,
		State:         state,
		Participants:  []model.Participant{{UserID: c.CreatorID, Role: model.RoleCreator, JoinedAt: now}},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func publish(s model.Session, actorID string, now time.Time) (model.Session, error) {
	const op = "booking.publish"
	if actorID != s.CreatorID {
		return s, model.NewKind(op, model.ErrInvalidActor)
	}
	if s.State != model.StateDraft {
		return s, model.Errorf(op, model.ErrInvalidState, "only draft sessions can be published")
	}
	if !s.StartsAt.After(now) {
		return s, model.Invalid(op, map[string]string{"starts_at": "must be in the future"})
	}
	s.State = model.StateOpen
	s.UpdatedAt = now
	return s, nil
}

// join seats u. Only an Open session accepts joins; SessionFull is left for
// an Open session whose seats are already taken.
func join(s model.Session, u model.User, now time.Time) (model.Session, error) {
	const op = "booking.join"
	if s.EffectiveState(now) != model.StateOpen || !now.Before(s.StartsAt) {
		return s, model.Errorf(op, model.ErrInvalidState, "session %s is not open for joining", s.ID)
	}
	if !eligibility.IsEligible(u.SkillLevel, s.Skill) {
		return s, model.Errorf(op, model.ErrIneligibleSkill, "skill level %.1f is outside %.1f-%.1f", u.SkillLevel, s.Skill.Min, s.Skill.Max)
	}
	if s.HasParticipant(u.ID) {
		return s, model.NewKind(op, model.ErrAlreadyJoined)
	}
	if len(s.Participants) >= s.Capacity {
		return s, model.NewKind(op, model.ErrSessionFull)
	}
	s.Participants = append(s.Participants, model.Participant{UserID: u.ID, Role: model.RoleJoiner, JoinedAt: now})
	if len(s.Participants) == s.Capacity {
		s.State = model.StateFull
	}
	s.UpdatedAt = now
	return s, nil
}

func leave(s model.Session, userID string, now time.Time) (model.Session, error) {
	const op = "booking.leave"
	state := s.EffectiveState(now)
	if state != model.StateOpen && state != model.StateFull {
		return s, model.Errorf(op, model.ErrInvalidState, "session %s can no longer be left", s.ID)
	}
	if userID == s.CreatorID {
		return s, model.Errorf(op, model.ErrInvalidActor, "the creator must cancel instead of leaving")
	}
	if !s.HasParticipant(userID) {
		return s, model.Errorf(op, model.ErrNotFound, "user is not a participant")
	}
	s.Participants = pie.Filter(s.Participants, func(p model.Participant) bool { return p.UserID != userID })
	if s.State == model.StateFull {
		s.State = model.StateOpen
	}
	s.UpdatedAt = now
	return s, nil
}

func cancel(s model.Session, actorID string, now time.Time) (model.Session, error) {
	const op = "booking.cancel"
	if actorID != s.CreatorID {
		return s, model.NewKind(op, model.ErrInvalidActor)
	}
	if s.State.Terminal() {
		return s, model.Errorf(op, model.ErrInvalidState, "session %s is already %s", s.ID, s.State)
	}
	for i := range s.Participants {
		closed := now
		s.Participants[i].ClosedAt = &closed
	}
	s.State = model.StateCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
	return s, nil
}

func complete(s model.Session, actorID string, outcome *model.Outcome, now time.Time) (model.Session, error) {
	const op = "booking.complete"
	if actorID != s.CreatorID {
		return s, model.NewKind(op, model.ErrInvalidActor)
	}
	switch s.EffectiveState(now) {
	case model.StateOpen, model.StateFull, model.StateInProgress:
	default:
		return s, model.Errorf(op, model.ErrInvalidState, "session %s cannot be completed from %s", s.ID, s.State)
	}
	if s.Type == model.TypeRankedMatch {
		if outcome == nil {
			return s, model.Invalid(op, map[string]string{"outcome": "required for ranked matches"})
		}
		if err := outcome.Validate(op, s.ParticipantIDs()); err != nil {
			return s, err
		}
		o := outcome.Clone()
		s.Outcome = &o
		s.RatingPending = true
	} else {
		s.Outcome = nil
	}
	s.State = model.StateCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	return s, nil
}
