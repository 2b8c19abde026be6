package model

import (
	"github.com/elliotchance/pie/v2"
)

// OutcomeKind tags the Outcome variant.
type OutcomeKind string

const (
	OutcomePairwise OutcomeKind = "pairwise"
	OutcomeRanked   OutcomeKind = "ranked"
)

// Outcome is the result of a ranked match. Pairwise outcomes use Winner and
// Loser (Draw marks a tie between them); ranked outcomes list every
// participant in Placements, best first.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Winner     string      `json:"winner,omitempty"`
	Loser      string      `json:"loser,omitempty"`
	Draw       bool        `json:"draw,omitempty"`
	Placements []string    `json:"placements,omitempty"`
}

// PairwiseOutcome reports winner beating loser.
func PairwiseOutcome(winner, loser string) Outcome {
	return Outcome{Kind: OutcomePairwise, Winner: winner, Loser: loser}
}

// DrawOutcome reports a tie between a and b.
func DrawOutcome(a, b string) Outcome {
	return Outcome{Kind: OutcomePairwise, Winner: a, Loser: b, Draw: true}
}

// RankedOutcome reports a total order of placements.
func RankedOutcome(placements ...string) Outcome {
	return Outcome{Kind: OutcomeRanked, Placements: append([]string(nil), placements...)}
}

// Clone returns a deep copy.
func (o Outcome) Clone() Outcome {
	o.Placements = append([]string(nil), o.Placements...)
	return o
}

// Users returns every user named by the outcome.
func (o Outcome) Users() []string {
	if o.Kind == OutcomePairwise {
		return []string{o.Winner, o.Loser}
	}
	return append([]string(nil), o.Placements...)
}

// Validate checks the outcome against the session participants.
func (o Outcome) Validate(op string, participants []string) error {
	switch o.Kind {
	case OutcomePairwise:
		if o.Winner == "" || o.Loser == "" || o.Winner == o.Loser {
			return Invalid(op, map[string]string{"outcome": "pairwise outcome needs two distinct users"})
		}
	case OutcomeRanked:
		if len(o.Placements) != len(participants) {
			return Invalid(op, map[string]string{"outcome.placements": "placements must list every participant once"})
		}
		if len(pie.Unique(o.Placements)) != len(o.Placements) {
			return Invalid(op, map[string]string{"outcome.placements": "placements contain duplicates"})
		}
	default:
		return Invalid(op, map[string]string{"outcome.kind": "must be pairwise or ranked"})
	}
	for _, u := range o.Users() {
		if !pie.Contains(participants, u) {
			return Invalid(op, map[string]string{"outcome": "outcome names a non-participant: " + u})
		}
	}
	return nil
}
