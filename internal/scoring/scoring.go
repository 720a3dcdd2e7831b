// internal/scoring/scoring.go
package scoring

import (
	"math"

	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

// Fixed penalty policy.
const (
	IncorrectGuessPenalty = -5
	CloseWordPenalty      = -10
	ExactWordPenalty      = -20
)

// DescriptionVerdict is the consequence of a describer's line.
type DescriptionVerdict int

const (
	VerdictNone DescriptionVerdict = iota
	VerdictWarning
	VerdictCloseWord
	VerdictExactWord
)

// RewardForCorrectGuess is the whole seconds left on the turn, never negative.
func RewardForCorrectGuess(timePerTurnSeconds int, elapsedSeconds float64) int {
	return int(math.Floor(math.Max(0, float64(timePerTurnSeconds)-elapsedSeconds)))
}

// JudgeDescription maps the similarity of a description to the target word onto the penalty tiers:
//
//	100        exact word, -20
//	(70, 90)   close word, -10
//	(50, 70)   warning, no points
//
// Everything else, including exactly 50, exactly 70 and 90..99, has no consequence.
func JudgeDescription(similarity int) DescriptionVerdict {
	switch {
	case similarity == 100:
		return VerdictExactWord
	case similarity > 70 && similarity < 90:
		return VerdictCloseWord
	case similarity > 50 && similarity < 70:
		return VerdictWarning
	}
	return VerdictNone
}

// Penalty returns the score delta of v; warnings and no-ops are zero.
func (v DescriptionVerdict) Penalty() int {
	switch v {
	case VerdictExactWord:
		return ExactWordPenalty
	case VerdictCloseWord:
		return CloseWordPenalty
	}
	return 0
}

// ApplyDelta adds delta to the named team's score. There is no floor.
func ApplyDelta(s *models.GameSession, teamName string, delta int) error {
	if s == nil {
		return gameerr.ErrGameNotFound
	}
	team := s.Team(teamName)
	if team == nil {
		return gameerr.ErrTeamNotFound
	}
	team.Score += delta
	return nil
}
