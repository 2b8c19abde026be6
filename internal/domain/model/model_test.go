package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given engine errors", t, func() {
		Convey("When wrapping an internal cause", func() {
			cause := errors.New("sqlite: database is locked")
			err := model.WrapKind("booking.join", model.ErrStoreUnavailable, cause)

			Convey("Then the kind and cause are both reachable", func() {
				So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(model.Retryable(err), ShouldBeTrue)
			})

			Convey("Then the public message hides the cause", func() {
				So(model.CodeOf(err), ShouldEqual, "store_unavailable")
				So(model.MessageOf(err), ShouldNotContainSubstring, "sqlite")
			})
		})

		Convey("When an error is wrapped again by fmt", func() {
			err := fmt.Errorf("outer: %w", model.NewKind("booking.join", model.ErrSessionFull))
			So(model.CodeOf(err), ShouldEqual, "session_full")
			So(model.Retryable(err), ShouldBeFalse)
		})

		Convey("When validation fails on several fields", func() {
			err := model.Invalid("booking.create", map[string]string{"title": "required", "capacity": "must be >= 1"})
			So(model.CodeOf(err), ShouldEqual, "validation_error")
			So(model.MessageOf(err), ShouldEqual, "invalid fields: capacity, title")
			So(model.FieldsOf(err), ShouldContainKey, "title")
		})

		Convey("When the error has no kind", func() {
			So(model.CodeOf(errors.New("boom")), ShouldEqual, model.CodeInternal)
			So(model.MessageOf(errors.New("boom")), ShouldEqual, "internal error")
		})
	})
}

func TestSessionHelpers(t *testing.T) {
	Convey("Given a session starting in one hour", t, func() {
		now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		s := model.Session{
			ID: "s1", CreatorID: "c", Capacity: 3, State: model.StateOpen, StartsAt: now.Add(time.Hour),
			Skill:        model.SkillRange{Min: 3, Max: 4.5},
			Participants: []model.Participant{{UserID: "c", Role: model.RoleCreator}},
		}

		Convey("Then before start the state is stored state", func() {
			So(s.EffectiveState(now), ShouldEqual, model.StateOpen)
			So(s.FreeSeats(), ShouldEqual, 2)
		})

		Convey("Then after start with only the creator it stays open", func() {
			So(s.EffectiveState(now.Add(2*time.Hour)), ShouldEqual, model.StateOpen)
		})

		Convey("Then after start with a joiner it is in progress", func() {
			s.Participants = append(s.Participants, model.Participant{UserID: "b", Role: model.RoleJoiner})
			So(s.EffectiveState(now.Add(time.Hour)), ShouldEqual, model.StateInProgress)
			So(s.ParticipantIDs(), ShouldResemble, []string{"c", "b"})
		})

		Convey("Then Clone does not share participants", func() {
			c := s.Clone()
			c.Participants[0].UserID = "x"
			So(s.Participants[0].UserID, ShouldEqual, "c")
		})

		Convey("Then filters match on skill level and window", func() {
			lvl := 4.0
			So(model.SessionFilter{SkillLevel: &lvl}.Match(s, now), ShouldBeTrue)
			lvl = 5.0
			So(model.SessionFilter{SkillLevel: &lvl}.Match(s, now), ShouldBeFalse)
			So(model.SessionFilter{From: now, To: now.Add(time.Hour)}.Match(s, now), ShouldBeFalse)
			So(model.SessionFilter{From: now, To: now.Add(2 * time.Hour)}.Match(s, now), ShouldBeTrue)
		})
	})
}

func TestOutcomeValidate(t *testing.T) {
	Convey("Given participants a, b, c", t, func() {
		ps := []string{"a", "b", "c"}

		So(model.PairwiseOutcome("a", "b").Validate("op", ps), ShouldBeNil)
		So(model.DrawOutcome("a", "c").Validate("op", ps), ShouldBeNil)
		So(model.RankedOutcome("c", "a", "b").Validate("op", ps), ShouldBeNil)

		So(errors.Is(model.PairwiseOutcome("a", "a").Validate("op", ps), model.ErrValidation), ShouldBeTrue)
		So(errors.Is(model.PairwiseOutcome("a", "z").Validate("op", ps), model.ErrValidation), ShouldBeTrue)
		So(errors.Is(model.RankedOutcome("a", "b").Validate("op", ps), model.ErrValidation), ShouldBeTrue)
		So(errors.Is(model.RankedOutcome("a", "a", "b").Validate("op", ps), model.ErrValidation), ShouldBeTrue)
		So(errors.Is(model.Outcome{Kind: "bogus"}.Validate("op", ps), model.ErrValidation), ShouldBeTrue)
	})
}
