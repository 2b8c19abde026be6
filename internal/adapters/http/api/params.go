package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/courtside/internal/domain/booking"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/model"
)

// createSessionRequest is the body of POST /sessions.
type createSessionRequest struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Type            model.SessionType `json:"type"`
	StartsAt        time.Time         `json:"starts_at"`
	DurationMinutes int               `json:"duration_minutes"`
	Venue           model.Venue       `json:"venue"`
	Skill           *model.SkillRange `json:"skill"`
	SkillBand       string            `json:"skill_band"`
	Capacity        int               `json:"capacity"`
	CostPerPerson   float64           `json:"cost_per_person"`
	Draft           bool              `json:"draft"`
}

// spec converts the request into a booking spec. A named band is an
// alternative to an explicit range.
func (c createSessionRequest) spec(op, creatorID string) (booking.CreateSpec, error) {
	spec := booking.CreateSpec{
		CreatorID:     creatorID,
		Title:         c.Title,
		Description:   c.Description,
		Type:          c.Type,
		StartsAt:      c.StartsAt,
		Duration:      time.Duration(c.DurationMinutes) * time.Minute,
		Venue:         c.Venue,
		Capacity:      c.Capacity,
		CostPerPerson: c.CostPerPerson,
		Draft:         c.Draft,
	}
	switch {
	case c.Skill != nil && c.SkillBand != "":
		return spec, model.Invalid(op, map[string]string{"skill": "give either skill or skill_band"})
	case c.Skill != nil:
		spec.Skill = *c.Skill
	case c.SkillBand != "":
		r, ok := eligibility.RangeFor(c.SkillBand)
		if !ok {
			return spec, model.Invalid(op, map[string]string{"skill_band": "is not a known band"})
		}
		spec.Skill = r
	default:
		return spec, model.Invalid(op, map[string]string{"skill": "is required"})
	}
	return spec, nil
}

type completeRequest struct {
	Outcome *model.Outcome `json:"outcome"`
}

type upsertUserRequest struct {
	DisplayName string  `json:"display_name"`
	SkillLevel  float64 `json:"skill_level"`
}

// sessionResponse adds the duration in minutes next to the raw nanoseconds.
type sessionResponse struct {
	model.Session
	DurationMinutes int `json:"duration_minutes"`
}

func newSessionResponse(s model.Session) sessionResponse {
	return sessionResponse{Session: s, DurationMinutes: int(s.Duration / time.Minute)}
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type completeResponse struct {
	Session sessionResponse      `json:"session"`
	Changes []model.RatingChange `json:"rating_changes"`
}

// queryInt reads an optional positive integer query parameter. Zero means unset.
func queryInt(r *http.Request, op, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, model.Invalid(op, map[string]string{key: "must be a positive integer"})
	}
	return n, nil
}

// sessionFilter parses GET /sessions query parameters. Every bad parameter
// is reported at once.
func sessionFilter(r *http.Request, op string) (model.SessionFilter, error) {
	q := r.URL.Query()
	f := model.SessionFilter{
		Type:          model.SessionType(q.Get("type")),
		State:         model.State(q.Get("state")),
		CreatorID:     q.Get("creator_id"),
		ParticipantID: q.Get("participant_id"),
	}
	fields := map[string]string{}

	if v := q.Get("skill_level"); v != "" {
		level, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fields["skill_level"] = "must be a number"
		} else {
			f.SkillLevel = &level
		}
	}
	if v := q.Get("band"); v != "" {
		band, ok := eligibility.RangeFor(v)
		if !ok {
			fields["band"] = "is not a known band"
		} else {
			f.Band = &band
		}
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				fields[key] = "must be an RFC3339 timestamp"
				continue
			}
			*dst = t
		}
	}
	if v := q.Get("rating_pending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fields["rating_pending"] = "must be a boolean"
		}
		f.RatingPending = b
	}
	limit, err := queryInt(r, op, "limit")
	if err != nil {
		fields["limit"] = "must be a positive integer"
	}
	f.Limit = limit

	if len(fields) > 0 {
		return model.SessionFilter{}, model.Invalid(op, fields)
	}
	return f, nil
}
