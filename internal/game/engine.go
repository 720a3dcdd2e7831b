// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/jason-s-yu/taboo/internal/scoring"
	"github.com/jason-s-yu/taboo/internal/similarity"
	"github.com/jason-s-yu/taboo/internal/timer"
	"github.com/sirupsen/logrus"
)

// ErrEngineClosed is returned for work submitted after Close.
var ErrEngineClosed = errors.New("game engine closed")

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	Bounds       models.SessionBounds
	IdleTimeout  time.Duration
	StoreTimeout time.Duration
	SaveAttempts int
	InboxSize    int

	// TurnLength converts a session's time per turn into a countdown.
	TurnLength func(seconds int) time.Duration
}

func (c Config) withDefaults() Config {
	if c.Bounds == (models.SessionBounds{}) {
		c.Bounds = models.DefaultSessionBounds
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.SaveAttempts <= 0 {
		c.SaveAttempts = 3
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 64
	}
	if c.TurnLength == nil {
		c.TurnLength = func(seconds int) time.Duration { return time.Duration(seconds) * time.Second }
	}
	return c
}

// Deps are the collaborators the engine consumes. Recorder, Timer, Rand, Now and Logger are optional.
type Deps struct {
	Store       Store
	Lobbies     LobbyProvider
	Users       UserDirectory
	Words       WordSource
	Broadcaster Broadcaster
	Recorder    Recorder
	Timer       *timer.SessionTimer
	Rand        *rand.Rand
	Now         func() time.Time
	Logger      logrus.FieldLogger
}

// Engine runs game sessions. Every session is owned by a worker goroutine that applies
// inbound messages and timer expiries one at a time; sessions never share a lock.
type Engine struct {
	cfg     Config
	store   Store
	lobbies LobbyProvider
	bc      Broadcaster
	rec     Recorder
	timers  *timer.SessionTimer
	turns   *TurnCoordinator
	now     func() time.Time
	log     logrus.FieldLogger

	mu      sync.Mutex
	workers map[uuid.UUID]*worker
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Timer == nil {
		deps.Timer = timer.NewSessionTimer()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Engine{
		cfg:     cfg.withDefaults(),
		store:   deps.Store,
		lobbies: deps.Lobbies,
		bc:      deps.Broadcaster,
		rec:     deps.Recorder,
		timers:  deps.Timer,
		turns:   NewTurnCoordinator(deps.Words, deps.Users, deps.Rand, deps.Now),
		now:     deps.Now,
		log:     deps.Logger,
		workers: make(map[uuid.UUID]*worker),
		done:    make(chan struct{}),
	}
}

// RoomKey is the broadcast room of a session.
func RoomKey(gameID uuid.UUID) string {
	return gameID.String()
}

// CreateSession builds a session from the lobby's current rosters and stores it.
// The first turn is started separately with StartTurn.
func (e *Engine) CreateSession(ctx context.Context, lobbyID uuid.UUID, rounds, timePerTurn int) (*models.GameSession, error) {
	if !e.cfg.Bounds.AllowsRounds(rounds) {
		return nil, gameerr.Newf(gameerr.KindValidation, "rounds must be between %d and %d", e.cfg.Bounds.MinRounds, e.cfg.Bounds.MaxRounds)
	}
	if !e.cfg.Bounds.AllowsSeconds(timePerTurn) {
		return nil, gameerr.Newf(gameerr.KindValidation, "time per turn must be between %d and %d seconds", e.cfg.Bounds.MinSeconds, e.cfg.Bounds.MaxSeconds)
	}

	lctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	rosters, err := e.lobbies.GetTeams(lctx, lobbyID)
	cancel()
	if err != nil {
		if gameerr.KindOf(err) == gameerr.KindNotFound {
			return nil, err
		}
		return nil, gameerr.Wrap(gameerr.KindPersistence, "lobby could not be read", err)
	}
	teams, err := teamsFromRosters(rosters)
	if err != nil {
		return nil, err
	}

	s := &models.GameSession{
		ID:          uuid.New(),
		LobbyID:     lobbyID,
		TotalRounds: rounds,
		TimePerTurn: timePerTurn,
		Teams:       teams,
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.store.Save(sctx, s); err != nil {
		return nil, gameerr.Persistence(err)
	}
	e.log.WithFields(logrus.Fields{"game": s.ID, "lobby": lobbyID, "teams": len(teams)}).Info("session created")
	return s, nil
}

func teamsFromRosters(rosters []models.TeamRoster) ([]models.TeamInfo, error) {
	if len(rosters) == 0 {
		return nil, gameerr.Validation("lobby has no teams")
	}
	seen := make(map[string]bool, len(rosters))
	teams := make([]models.TeamInfo, 0, len(rosters))
	for _, r := range rosters {
		name := strings.TrimSpace(r.TeamName)
		if name == "" {
			return nil, gameerr.Validation("team name is required")
		}
		if seen[name] {
			return nil, gameerr.Newf(gameerr.KindValidation, "duplicate team %s", name)
		}
		if len(r.Players) == 0 {
			return nil, gameerr.Newf(gameerr.KindValidation, "team %s has no players", name)
		}
		seen[name] = true
		teams = append(teams, models.TeamInfo{TeamName: name, Players: append([]uuid.UUID(nil), r.Players...)})
	}
	return teams, nil
}

// HandleMessage applies one send_message line. Malformed lines are rejected before any
// lookup; every failure is also reported to the sender alone as an error event.
func (e *Engine) HandleMessage(ctx context.Context, msg models.SendMessage) error {
	gameID, senderID, err := parseMessage(msg)
	if err != nil {
		e.notify(ctx, msg.GameID, senderID, err)
		return err
	}
	return e.submit(ctx, gameID, command{kind: cmdMessage, sender: senderID, msg: msg})
}

// StartTurn bootstraps a session by starting the first turn for req.TeamName.
// The requester must be a player of the session.
func (e *Engine) StartTurn(ctx context.Context, requester uuid.UUID, req models.StartTurnRequest) error {
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		err = gameerr.Validation("gameId must be a uuid")
		e.notify(ctx, req.GameID, requester, err)
		return err
	}
	if strings.TrimSpace(req.TeamName) == "" {
		err = gameerr.Validation("teamName is required")
		e.notify(ctx, req.GameID, requester, err)
		return err
	}
	return e.submit(ctx, gameID, command{kind: cmdStartTurn, sender: requester, team: strings.TrimSpace(req.TeamName)})
}

// Snapshot returns a copy of the stored session.
func (e *Engine) Snapshot(ctx context.Context, gameID uuid.UUID) (*models.GameSession, error) {
	lctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	s, err := e.store.Load(lctx, gameID)
	if err != nil {
		return nil, loadError(err)
	}
	return s, nil
}

// Close cancels every pending turn timer and stops all workers.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	e.timers.CancelAll()
	e.wg.Wait()
}

func parseMessage(msg models.SendMessage) (uuid.UUID, uuid.UUID, error) {
	senderID, err := uuid.Parse(msg.Sender)
	if err != nil {
		return uuid.Nil, uuid.Nil, gameerr.Validation("sender must be a uuid")
	}
	gameID, err := uuid.Parse(msg.GameID)
	if err != nil {
		return uuid.Nil, senderID, gameerr.Validation("gameId must be a uuid")
	}
	if !msg.MessageType.Valid() {
		return gameID, senderID, gameerr.Newf(gameerr.KindValidation, "unknown messageType %q", msg.MessageType)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return gameID, senderID, gameerr.Validation("content is required")
	}
	return gameID, senderID, nil
}

// applyMessage routes a send_message line. It runs on the session's worker.
func (e *Engine) applyMessage(ctx context.Context, s *models.GameSession, senderID uuid.UUID, msg models.SendMessage) (outcome, error) {
	if msg.MessageType == models.MessageChat {
		return outcome{events: []Event{newMessage(msg)}}, nil
	}
	if s.Over {
		return outcome{}, gameerr.Forbidden("game is over")
	}
	role := s.RoleOf(senderID)

	turn, ok := s.ActiveTurn()
	if !ok {
		return outcome{}, gameerr.Forbidden("no turn in progress")
	}
	if !HasPermission(role, msg.MessageType, s, senderID) {
		if msg.MessageType == models.MessageDescribe {
			return outcome{}, gameerr.Forbidden("only the describer may describe")
		}
		return outcome{}, gameerr.Newf(gameerr.KindForbidden, "only guessers of team %s may guess", turn.TeamName)
	}

	if msg.MessageType == models.MessageGuess {
		return e.applyGuess(ctx, s, turn, senderID, msg)
	}
	return e.applyDescription(s, turn, msg)
}

func (e *Engine) applyGuess(ctx context.Context, s *models.GameSession, turn *models.Turn, senderID uuid.UUID, msg models.SendMessage) (outcome, error) {
	guesser := guesserName(turn, senderID)
	if !similarity.IsMatch(turn.WordToGuess, msg.Content) {
		if err := scoring.ApplyDelta(s, turn.TeamName, scoring.IncorrectGuessPenalty); err != nil {
			return outcome{}, err
		}
		return outcome{dirty: true, events: []Event{newMessage(msg), incorrectGuess(turn.TeamName, guesser)}}, nil
	}

	team := turn.TeamName
	elapsed := e.now().Sub(s.TurnStartTimestamp).Seconds()
	reward := scoring.RewardForCorrectGuess(s.TimePerTurn, elapsed)
	if err := scoring.ApplyDelta(s, team, reward); err != nil {
		return outcome{}, err
	}
	out, err := e.advance(ctx, s)
	if err != nil {
		return outcome{}, err
	}
	out.events = append([]Event{newMessage(msg), correctGuess(team, guesser, reward)}, out.events...)
	return out, nil
}

// applyDescription scores a describer's line against the word. Lines that cost points are not
// echoed to the room since they contain the word or something close to it.
func (e *Engine) applyDescription(s *models.GameSession, turn *models.Turn, msg models.SendMessage) (outcome, error) {
	verdict := scoring.JudgeDescription(similarity.ScoreText(msg.Content, turn.WordToGuess))
	var reason string
	switch verdict {
	case scoring.VerdictExactWord:
		reason = "the describer said the word"
	case scoring.VerdictCloseWord:
		reason = "the description was too close to the word"
	case scoring.VerdictWarning:
		return outcome{events: []Event{newMessage(msg), warning(turn.TeamName)}}, nil
	default:
		return outcome{events: []Event{newMessage(msg)}}, nil
	}

	delta := verdict.Penalty()
	if err := scoring.ApplyDelta(s, turn.TeamName, delta); err != nil {
		return outcome{}, err
	}
	return outcome{dirty: true, events: []Event{pointsDeducted(turn.TeamName, reason, delta)}}, nil
}

// advance ends the current turn and starts the next, or finishes the game.
func (e *Engine) advance(ctx context.Context, s *models.GameSession) (outcome, error) {
	if err := e.turns.EndTurn(s); err != nil {
		return outcome{}, err
	}
	next, err := e.turns.StartNextTurn(ctx, s)
	if err != nil {
		return outcome{}, err
	}
	if next.GameOver {
		return outcome{dirty: true, timer: timerCancel, events: []Event{gameEnded(s)}}, nil
	}
	return outcome{dirty: true, timer: timerRestart, events: []Event{turnStarted(s)}}, nil
}

func (e *Engine) applyStartTurn(ctx context.Context, s *models.GameSession, requester uuid.UUID, team string) (outcome, error) {
	if s.Over {
		return outcome{}, gameerr.Forbidden("game is over")
	}
	if s.Started() {
		return outcome{}, gameerr.Forbidden("game already started")
	}
	if !isPlayer(s, requester) {
		return outcome{}, gameerr.Forbidden("only players of this game may start it")
	}
	if err := e.turns.StartTurn(ctx, s, team); err != nil {
		return outcome{}, err
	}
	return outcome{dirty: true, timer: timerRestart, events: []Event{turnStarted(s)}}, nil
}

// applyExpiry handles a turn running out of time. Expiries for a turn that already ended are dropped.
func (e *Engine) applyExpiry(ctx context.Context, s *models.GameSession, turnSeq int) (outcome, error) {
	if s.TurnSeq != turnSeq {
		return outcome{}, nil
	}
	turn, ok := s.ActiveTurn()
	if !ok {
		return outcome{}, nil
	}
	ended := turnEnded(turn.TeamName)
	out, err := e.advance(ctx, s)
	if err != nil {
		return outcome{}, err
	}
	out.events = append([]Event{ended}, out.events...)
	return out, nil
}

func guesserName(turn *models.Turn, id uuid.UUID) string {
	for i, g := range turn.GuesserIDs {
		if g == id && i < len(turn.Guessers) {
			return turn.Guessers[i]
		}
	}
	return models.FallbackName(id)
}

func isPlayer(s *models.GameSession, id uuid.UUID) bool {
	for _, t := range s.Teams {
		for _, p := range t.Players {
			if p == id {
				return true
			}
		}
	}
	return false
}

func loadError(err error) error {
	if gameerr.KindOf(err) == gameerr.KindNotFound {
		return err
	}
	return gameerr.Wrap(gameerr.KindPersistence, "session could not be loaded", err)
}
