// internal/game/turns.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

// NextTurn is the result of advancing a session.
type NextTurn struct {
	GameOver bool
	Session  *models.GameSession
}

// TurnCoordinator owns the turn/round state machine of a session:
// NotStarted -> Active -> Ended -> Active (next team) ... -> GameOver.
type TurnCoordinator struct {
	words WordSource
	users UserDirectory
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewTurnCoordinator(words WordSource, users UserDirectory, rng *rand.Rand, now func() time.Time) *TurnCoordinator {
	if now == nil {
		now = time.Now
	}
	return &TurnCoordinator{words: words, users: users, rng: rng, now: now}
}

// StartTurn begins a turn for teamName. The first call on a session opens round 1 with
// teamName at position 1; every later round keeps the same rotation.
func (tc *TurnCoordinator) StartTurn(ctx context.Context, s *models.GameSession, teamName string) error {
	if s == nil {
		return gameerr.ErrGameNotFound
	}
	idx := s.TeamIndex(teamName)
	if idx < 0 {
		return gameerr.ErrTeamNotFound
	}
	if !s.Started() {
		s.CurrentRound = 1
		s.FirstTeamIndex = idx
	}
	n := len(s.Teams)
	s.PlayingTurnIndex = (idx-s.FirstTeamIndex+n)%n + 1
	return tc.assign(ctx, s, idx)
}

// EndTurn deactivates the current turn. Ending an inactive turn is a no-op.
func (tc *TurnCoordinator) EndTurn(s *models.GameSession) error {
	if s == nil {
		return gameerr.ErrGameNotFound
	}
	if s.CurrentTurn != nil {
		s.CurrentTurn.IsActive = false
	}
	return nil
}

// StartNextTurn hands the turn to the next team in rotation, opening a new round
// after the last position. Once every team has played the final round the session is
// declared over instead and nothing else changes.
func (tc *TurnCoordinator) StartNextTurn(ctx context.Context, s *models.GameSession) (NextTurn, error) {
	if s == nil {
		return NextTurn{}, gameerr.ErrGameNotFound
	}
	if !s.Started() {
		return NextTurn{Session: s}, gameerr.Forbidden("game has not started")
	}
	teamCount := len(s.Teams)
	if teamCount == 0 {
		return NextTurn{Session: s}, gameerr.Validation("game has no teams")
	}

	if s.CurrentRound >= s.TotalRounds && s.PlayingTurnIndex >= teamCount {
		tc.EndTurn(s)
		s.Over = true
		s.Winners = Winners(s)
		return NextTurn{GameOver: true, Session: s}, nil
	}

	next := s.PlayingTurnIndex%teamCount + 1
	if next == 1 {
		s.CurrentRound++
	}
	s.PlayingTurnIndex = next
	if err := tc.assign(ctx, s, s.TeamAt(next)); err != nil {
		return NextTurn{Session: s}, err
	}
	return NextTurn{Session: s}, nil
}

// assign replaces the current turn with a fresh one for Teams[idx].
func (tc *TurnCoordinator) assign(ctx context.Context, s *models.GameSession, idx int) error {
	team := s.Teams[idx]
	if len(team.Players) == 0 {
		return gameerr.Newf(gameerr.KindValidation, "team %s has no players", team.TeamName)
	}

	word, err := tc.words.Next()
	if err != nil {
		return gameerr.Wrap(gameerr.KindInternal, "no word available", err)
	}

	tc.mu.Lock()
	pick := tc.rng.Intn(len(team.Players))
	tc.mu.Unlock()

	describerID := team.Players[pick]
	guesserIDs := make([]uuid.UUID, 0, len(team.Players)-1)
	for i, id := range team.Players {
		if i != pick {
			guesserIDs = append(guesserIDs, id)
		}
	}

	names := tc.displayNames(ctx, append([]uuid.UUID{describerID}, guesserIDs...))

	s.CurrentTurn = &models.Turn{
		TeamName:    team.TeamName,
		WordToGuess: word,
		DescriberID: describerID,
		Describer:   names[0],
		GuesserIDs:  guesserIDs,
		Guessers:    names[1:],
		IsActive:    true,
	}
	s.TurnStartTimestamp = tc.now()
	s.TurnSeq++
	return nil
}

// displayNames never fails: players the directory cannot label get a fallback name.
func (tc *TurnCoordinator) displayNames(ctx context.Context, ids []uuid.UUID) []string {
	var names []string
	if tc.users != nil {
		names, _ = tc.users.ResolveDisplayNames(ctx, ids)
	}
	if len(names) != len(ids) {
		names = make([]string, len(ids))
	}
	for i, id := range ids {
		if names[i] == "" {
			names[i] = models.FallbackName(id)
		}
	}
	return names
}

// Winners returns every team holding the top score, in lobby order.
func Winners(s *models.GameSession) []string {
	if s == nil || len(s.Teams) == 0 {
		return nil
	}
	top := s.Teams[0].Score
	for _, t := range s.Teams[1:] {
		top = max(top, t.Score)
	}
	var out []string
	for _, t := range s.Teams {
		if t.Score == top {
			out = append(out, t.TeamName)
		}
	}
	return out
}

// describeWinners renders the game_ended message.
func describeWinners(winners []string) string {
	switch len(winners) {
	case 0:
		return "Game over!"
	case 1:
		return fmt.Sprintf("Game over! Team %s wins!", winners[0])
	}
	return fmt.Sprintf("Game over! It's a tie between %s!", joinTeams(winners))
}

func joinTeams(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := ""
	for i, n := range names[:len(names)-1] {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out + " and " + names[len(names)-1]
}
