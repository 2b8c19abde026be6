// Package eligibility decides whether a player's skill level fits a session.
package eligibility

import (
	"strings"

	"github.com/okian/courtside/internal/domain/model"
)

// IsEligible reports whether level lies within r, bounds inclusive.
func IsEligible(level float64, r model.SkillRange) bool {
	return r.Min <= level && level <= r.Max
}

// Bucket is a coarse skill band used by session search.
type Bucket string

const (
	Beginner     Bucket = "beginner"
	Intermediate Bucket = "intermediate"
	Advanced     Bucket = "advanced"
	Professional Bucket = "professional"
)

var buckets = []struct {
	name Bucket
	r    model.SkillRange
}{
	{Beginner, model.SkillRange{Min: 1.0, Max: 2.5}},
	{Intermediate, model.SkillRange{Min: 3.0, Max: 4.0}},
	{Advanced, model.SkillRange{Min: 4.5, Max: 5.5}},
	{Professional, model.SkillRange{Min: 6.0, Max: 7.0}},
}

// BucketOf names the band containing level. Levels between bands round
// down to the lower band.
func BucketOf(level float64) Bucket {
	out := Beginner
	for _, b := range buckets {
		if level >= b.r.Min {
			out = b.name
		}
	}
	return out
}

// RangeFor returns the skill range of a named bucket.
func RangeFor(name string) (model.SkillRange, bool) {
	for _, b := range buckets {
		if string(b.name) == strings.ToLower(strings.TrimSpace(name)) {
			return b.r, true
		}
	}
	return model.SkillRange{}, false
}

// Bounds are the global limits a session range must lie within.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds is the 1.0-7.0 scale.
var DefaultBounds = Bounds{Min: 1.0, Max: 7.0}

// ValidRange reports whether r is ordered and within b.
func (b Bounds) ValidRange(r model.SkillRange) bool {
	return r.Min <= r.Max && r.Min >= b.Min && r.Max <= b.Max
}

// ValidLevel reports whether a player's level is on the scale.
func (b Bounds) ValidLevel(level float64) bool {
	return level >= b.Min && level <= b.Max
}
