// internal/game/engine_test.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/jason-s-yu/taboo/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	room    string
	to      uuid.UUID
	name    string
	payload map[string]interface{}
}

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu      sync.Mutex
	room    []sentEvent
	private []sentEvent
}

func (mb *mockBroadcaster) Emit(ctx context.Context, roomKey, event string, payload map[string]interface{}) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.room = append(mb.room, sentEvent{room: roomKey, name: event, payload: payload})
	return nil
}

func (mb *mockBroadcaster) EmitTo(ctx context.Context, roomKey string, recipient uuid.UUID, event string, payload map[string]interface{}) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.private = append(mb.private, sentEvent{room: roomKey, to: recipient, name: event, payload: payload})
	return nil
}

func (mb *mockBroadcaster) names() []string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]string, len(mb.room))
	for i, ev := range mb.room {
		out[i] = ev.name
	}
	return out
}

func (mb *mockBroadcaster) last(name string) *sentEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.room) - 1; i >= 0; i-- {
		if mb.room[i].name == name {
			ev := mb.room[i]
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) first(name string) *sentEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, ev := range mb.room {
		if ev.name == name {
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) count(name string) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.room {
		if ev.name == name {
			n++
		}
	}
	return n
}

func (mb *mockBroadcaster) privateTo(id uuid.UUID) []sentEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []sentEvent
	for _, ev := range mb.private {
		if ev.to == id {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.room = nil
	mb.private = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails or conflicts on demand.
type flakyStore struct {
	*store.MemoryStore
	failSaves atomic.Bool
	conflicts atomic.Int32
	saves     atomic.Int32
}

func (f *flakyStore) Save(ctx context.Context, s *models.GameSession) error {
	f.saves.Add(1)
	if f.failSaves.Load() {
		return errors.New("connection refused")
	}
	if f.conflicts.Load() > 0 {
		f.conflicts.Add(-1)
		return gameerr.ErrVersionConflict
	}
	return f.MemoryStore.Save(ctx, s)
}

type memRecorder struct {
	mu   sync.Mutex
	recs []models.EventRecord
}

func (r *memRecorder) Record(ctx context.Context, rec models.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

type harness struct {
	t      *testing.T
	engine *Engine
	store  *flakyStore
	bc     *mockBroadcaster
	rec    *memRecorder
	clock  *fakeClock
	logs   *test.Hook
	game   *models.GameSession
	teams  map[string][]uuid.UUID
}

func newHarness(t *testing.T, rounds, seconds int, teamNames []string, tweak func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		store: &flakyStore{MemoryStore: store.NewMemoryStore()},
		bc:    &mockBroadcaster{},
		rec:   &memRecorder{},
		clock: &fakeClock{now: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)},
		teams: make(map[string][]uuid.UUID),
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h.logs = hook

	lobbies := store.NewStaticLobbies()
	lobbyID := uuid.New()
	var rosters []models.TeamRoster
	for _, name := range teamNames {
		players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		h.teams[name] = players
		rosters = append(rosters, models.TeamRoster{TeamName: name, Players: players})
	}
	lobbies.Put(lobbyID, rosters)

	cfg := Config{TurnLength: func(int) time.Duration { return time.Hour }}
	if tweak != nil {
		tweak(&cfg)
	}
	h.engine = NewEngine(Deps{
		Store:       h.store,
		Lobbies:     lobbies,
		Users:       store.NewStaticDirectory(),
		Words:       fixedWords{"planet"},
		Broadcaster: h.bc,
		Recorder:    h.rec,
		Rand:        rand.New(rand.NewSource(42)),
		Now:         h.clock.Now,
		Logger:      logger,
	}, cfg)
	t.Cleanup(h.engine.Close)

	s, err := h.engine.CreateSession(context.Background(), lobbyID, rounds, seconds)
	require.NoError(t, err)
	h.game = s
	return h
}

func (h *harness) start(team string) {
	h.t.Helper()
	err := h.engine.StartTurn(context.Background(), h.teams[team][0], models.StartTurnRequest{GameID: h.game.ID.String(), TeamName: team})
	require.NoError(h.t, err)
}

func (h *harness) session() *models.GameSession {
	h.t.Helper()
	s, err := h.engine.Snapshot(context.Background(), h.game.ID)
	require.NoError(h.t, err)
	return s
}

func (h *harness) send(sender uuid.UUID, typ models.MessageType, content string) error {
	return h.engine.HandleMessage(context.Background(), models.SendMessage{
		GameID:      h.game.ID.String(),
		Sender:      sender.String(),
		Content:     content,
		MessageType: typ,
	})
}

func (h *harness) describer() uuid.UUID {
	return h.session().CurrentTurn.DescriberID
}

func (h *harness) guesser() uuid.UUID {
	return h.session().CurrentTurn.GuesserIDs[0]
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness(t, 2, 60, []string{"A", "B"}, nil)

	_, err := h.engine.CreateSession(context.Background(), h.game.LobbyID, 0, 60)
	assert.Equal(t, gameerr.KindValidation, gameerr.KindOf(err))

	_, err = h.engine.CreateSession(context.Background(), h.game.LobbyID, 2, 500)
	assert.Equal(t, gameerr.KindValidation, gameerr.KindOf(err))

	_, err = h.engine.CreateSession(context.Background(), uuid.New(), 2, 60)
	assert.ErrorIs(t, err, gameerr.ErrLobbyNotFound)

	s := h.session()
	assert.Equal(t, 0, s.CurrentRound)
	assert.Nil(t, s.CurrentTurn)
	assert.Equal(t, []string{"A", "B"}, []string{s.Teams[0].TeamName, s.Teams[1].TeamName})
}

func TestStartTurnBroadcastsAndArmsTimer(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")

	s := h.session()
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, 1, s.PlayingTurnIndex)
	assert.True(t, h.engine.timers.Pending(s.ID))

	ev := h.bc.last(EventTurnStarted)
	require.NotNil(t, ev)
	assert.Equal(t, RoomKey(s.ID), ev.room)
	assert.Equal(t, 1, ev.payload["round"])
	assert.Equal(t, 1, ev.payload["turn"])
	assert.Equal(t, 60, ev.payload["time"])
	assert.Equal(t, "planet", ev.payload["wordToGuess"])
	assert.Equal(t, "A", ev.payload["teamName"])
	assert.Equal(t, s.CurrentTurn.Describer, ev.payload["describer"])
	assert.NotEmpty(t, ev.payload["message"])
}

func TestStartTurnOnlyBootstraps(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")

	err := h.engine.StartTurn(context.Background(), h.teams["B"][0], models.StartTurnRequest{GameID: h.game.ID.String(), TeamName: "B"})
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(err))
	assert.Equal(t, "A", h.session().CurrentTurn.TeamName)

	errs := h.bc.privateTo(h.teams["B"][0])
	require.Len(t, errs, 1)
	assert.Equal(t, EventError, errs[0].name)
	assert.Equal(t, "game already started", errs[0].payload["message"])
}

func TestStartTurnUnknownTeamAndStranger(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)

	err := h.engine.StartTurn(context.Background(), h.teams["A"][0], models.StartTurnRequest{GameID: h.game.ID.String(), TeamName: "Z"})
	assert.ErrorIs(t, err, gameerr.ErrTeamNotFound)

	err = h.engine.StartTurn(context.Background(), uuid.New(), models.StartTurnRequest{GameID: h.game.ID.String(), TeamName: "A"})
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(err))

	err = h.engine.StartTurn(context.Background(), h.teams["A"][0], models.StartTurnRequest{GameID: uuid.NewString(), TeamName: "A"})
	assert.ErrorIs(t, err, gameerr.ErrGameNotFound)

	assert.False(t, h.session().Started())
	assert.Empty(t, h.bc.names())
}

func TestDescriberSaysExactWord(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	h.bc.clear()

	require.NoError(t, h.send(h.describer(), models.MessageDescribe, "it is a PLANET"))

	assert.Equal(t, -20, h.session().Team("A").Score)
	assert.Equal(t, []string{EventPointsDeducted}, h.bc.names(), "the line must not be echoed")
	ev := h.bc.last(EventPointsDeducted)
	assert.Equal(t, -20, ev.payload["score"])
	assert.Equal(t, "A", ev.payload["team"])
}

func TestDescriptionTiers(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	describer := h.describer()

	h.bc.clear()
	require.NoError(t, h.send(describer, models.MessageDescribe, "like a plane"))
	assert.Equal(t, []string{EventPointsDeducted}, h.bc.names())
	assert.Equal(t, -10, h.bc.last(EventPointsDeducted).payload["score"])
	assert.Equal(t, -10, h.session().Team("A").Score)

	h.bc.clear()
	require.NoError(t, h.send(describer, models.MessageDescribe, "not a plate"))
	assert.Equal(t, []string{EventNewMessage, EventWarning}, h.bc.names())
	assert.Equal(t, "A", h.bc.last(EventWarning).payload["team"])

	h.bc.clear()
	require.NoError(t, h.send(describer, models.MessageDescribe, "orbits the sun"))
	assert.Equal(t, []string{EventNewMessage}, h.bc.names())

	assert.Equal(t, -10, h.session().Team("A").Score)
}

func TestCorrectGuessRewardsRemainingTime(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	h.bc.clear()

	h.clock.Advance(10 * time.Second)
	require.NoError(t, h.send(h.guesser(), models.MessageGuess, " Planet "))

	assert.Equal(t, []string{EventNewMessage, EventCorrectGuess, EventTurnStarted}, h.bc.names())
	ev := h.bc.last(EventCorrectGuess)
	assert.Equal(t, 50, ev.payload["score"])
	assert.Equal(t, "A", ev.payload["team"])

	s := h.session()
	assert.Equal(t, 50, s.Team("A").Score)
	assert.Equal(t, "B", s.CurrentTurn.TeamName)
	assert.True(t, s.CurrentTurn.IsActive)
	assert.Equal(t, 2, s.PlayingTurnIndex)
	assert.Equal(t, "B", h.bc.last(EventTurnStarted).payload["teamName"])
	assert.True(t, h.engine.timers.Pending(s.ID))
}

func TestIncorrectGuess(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	h.bc.clear()

	require.NoError(t, h.send(h.guesser(), models.MessageGuess, "comet"))

	assert.Equal(t, []string{EventNewMessage, EventIncorrectGuess}, h.bc.names())
	assert.Equal(t, "A", h.bc.last(EventIncorrectGuess).payload["team"])
	s := h.session()
	assert.Equal(t, -5, s.Team("A").Score)
	assert.Equal(t, "A", s.CurrentTurn.TeamName)
}

func TestGameEndsAfterFinalTeam(t *testing.T) {
	h := newHarness(t, 2, 60, []string{"A", "B", "C"}, nil)
	h.start("A")

	var order []string
	for i := 0; i < 6; i++ {
		s := h.session()
		require.False(t, s.Over)
		order = append(order, s.CurrentTurn.TeamName)
		// later turns are guessed faster so the last team wins
		h.clock.Advance(time.Duration(20-i) * time.Second)
		require.NoError(t, h.send(s.CurrentTurn.GuesserIDs[0], models.MessageGuess, "planet"))
	}

	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, order)
	s := h.session()
	assert.True(t, s.Over)
	assert.Equal(t, []string{"C"}, s.Winners)
	assert.False(t, h.engine.timers.Pending(s.ID))

	ev := h.bc.last(EventGameEnded)
	require.NotNil(t, ev)
	assert.Equal(t, "Game over! Team C wins!", ev.payload["message"])
	assert.Equal(t, []string{"C"}, ev.payload["winners"])

	err := h.send(s.CurrentTurn.GuesserIDs[0], models.MessageGuess, "planet")
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(err))
}

func TestTiedGameReportsAllWinners(t *testing.T) {
	h := newHarness(t, 1, 60, []string{"A", "B"}, nil)
	h.start("A")

	for i := 0; i < 2; i++ {
		h.clock.Advance(15 * time.Second)
		require.NoError(t, h.send(h.guesser(), models.MessageGuess, "planet"))
	}

	ev := h.bc.last(EventGameEnded)
	require.NotNil(t, ev)
	assert.Equal(t, []string{"A", "B"}, ev.payload["winners"])
	assert.Equal(t, "Game over! It's a tie between A and B!", ev.payload["message"])
	assert.Equal(t, map[string]int{"A": 45, "B": 45}, ev.payload["scores"])
}

func TestTimeoutAdvancesTurns(t *testing.T) {
	h := newHarness(t, 1, 60, []string{"A", "B"}, func(c *Config) {
		c.TurnLength = func(int) time.Duration { return 20 * time.Millisecond }
	})
	h.start("A")

	require.Eventually(t, func() bool { return h.bc.last(EventGameEnded) != nil }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		EventTurnStarted,
		EventTurnEnded, EventTurnStarted,
		EventTurnEnded, EventGameEnded,
	}, h.bc.names())
	ended := h.bc.first(EventTurnEnded)
	require.NotNil(t, ended)
	assert.Equal(t, "Time is up for team A.", ended.payload["message"])

	s := h.session()
	assert.True(t, s.Over)
	assert.Equal(t, []string{"A", "B"}, s.Winners)
	assert.False(t, h.engine.timers.Pending(s.ID))
}

func TestStaleExpiryIsDropped(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	before := h.session()
	h.bc.clear()

	err := h.engine.submit(context.Background(), h.game.ID, command{kind: cmdExpire, turnSeq: before.TurnSeq - 1})
	require.NoError(t, err)

	after := h.session()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, "A", after.CurrentTurn.TeamName)
	assert.Empty(t, h.bc.names())
}

func TestPermissionViolationsChangeNothing(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)

	// nothing is active before the first turn
	err := h.send(h.teams["A"][0], models.MessageGuess, "planet")
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(err))

	h.start("A")
	before := h.session()
	describer := before.CurrentTurn.DescriberID
	guesser := before.CurrentTurn.GuesserIDs[0]
	outsider := h.teams["B"][0]
	h.bc.clear()

	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(h.send(describer, models.MessageGuess, "planet")))
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(h.send(guesser, models.MessageDescribe, "a world")))
	assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(h.send(outsider, models.MessageGuess, "planet")))

	after := h.session()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 0, after.Team("A").Score)
	assert.Empty(t, h.bc.names(), "violations are never broadcast")

	for _, id := range []uuid.UUID{describer, guesser, outsider} {
		errs := h.bc.privateTo(id)
		require.Len(t, errs, 1)
		assert.Equal(t, EventError, errs[0].name)
		assert.Equal(t, string(gameerr.KindForbidden), errs[0].payload["code"])
	}
}

func TestChatIsEchoedWithoutSaving(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	saves := h.store.saves.Load()

	require.NoError(t, h.send(h.teams["B"][1], models.MessageChat, "good luck"))

	ev := h.bc.last(EventNewMessage)
	require.NotNil(t, ev)
	assert.Equal(t, "good luck", ev.payload["content"])
	assert.Equal(t, saves, h.store.saves.Load())
}

func TestMalformedMessagesAreRejectedBeforeLookup(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	sender := h.teams["A"][0]

	cases := []models.SendMessage{
		{GameID: "nope", Sender: sender.String(), Content: "x", MessageType: models.MessageChat},
		{GameID: h.game.ID.String(), Sender: "nope", Content: "x", MessageType: models.MessageChat},
		{GameID: h.game.ID.String(), Sender: sender.String(), Content: "x", MessageType: "shout"},
		{GameID: h.game.ID.String(), Sender: sender.String(), Content: "   ", MessageType: models.MessageGuess},
	}
	for _, msg := range cases {
		err := h.engine.HandleMessage(context.Background(), msg)
		assert.Equal(t, gameerr.KindValidation, gameerr.KindOf(err), "%+v", msg)
	}
	assert.Equal(t, 0, h.engine.Workers())
	assert.Empty(t, h.bc.names())
}

func TestPersistenceFailureDiscardsMutation(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	guesser := h.guesser()
	before := h.session()
	h.bc.clear()

	h.store.failSaves.Store(true)
	err := h.send(guesser, models.MessageGuess, "planet")
	assert.Equal(t, gameerr.KindPersistence, gameerr.KindOf(err))
	h.store.failSaves.Store(false)

	after := h.session()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 0, after.Team("A").Score)
	assert.Equal(t, "A", after.CurrentTurn.TeamName)
	assert.Empty(t, h.bc.names())
	require.NotNil(t, h.logs.LastEntry())
	assert.Equal(t, "session save failed", h.logs.LastEntry().Message)

	errs := h.bc.privateTo(guesser)
	require.Len(t, errs, 1)
	assert.Equal(t, string(gameerr.KindPersistence), errs[0].payload["code"])
}

func TestVersionConflictIsRetried(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	guesser := h.guesser()

	h.store.conflicts.Store(2)
	require.NoError(t, h.send(guesser, models.MessageGuess, "comet"))
	assert.Equal(t, -5, h.session().Team("A").Score, "the penalty is applied exactly once")

	h.store.conflicts.Store(3)
	err := h.send(guesser, models.MessageGuess, "comet")
	assert.Equal(t, gameerr.KindPersistence, gameerr.KindOf(err))
	assert.Equal(t, -5, h.session().Team("A").Score)
}

func TestEventsAreRecorded(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	require.NoError(t, h.send(h.guesser(), models.MessageGuess, "planet"))

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	require.Len(t, h.rec.recs, 4)
	last := h.rec.recs[3]
	assert.Equal(t, EventTurnStarted, last.EventType)
	assert.Equal(t, h.game.ID, last.GameID)
	assert.Equal(t, 2, last.Index)
	assert.Equal(t, h.session().Version, last.Version)
}

func TestIdleWorkersRetire(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, func(c *Config) {
		c.IdleTimeout = 20 * time.Millisecond
	})
	h.start("A")

	require.Eventually(t, func() bool { return h.engine.Workers() == 0 }, time.Second, 5*time.Millisecond)

	// the next message brings the session back
	require.NoError(t, h.send(h.guesser(), models.MessageGuess, "comet"))
	assert.Equal(t, -5, h.session().Team("A").Score)
}

func TestConcurrentGuessesAdvanceOnce(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	guessers := h.session().CurrentTurn.GuesserIDs

	var wg sync.WaitGroup
	results := make([]error, len(guessers))
	for i, g := range guessers {
		wg.Add(1)
		go func(i int, g uuid.UUID) {
			defer wg.Done()
			results[i] = h.send(g, models.MessageGuess, "planet")
		}(i, g)
	}
	wg.Wait()

	var ok, forbidden int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case gameerr.KindOf(err) == gameerr.KindForbidden:
			forbidden++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(guessers)-1, forbidden)

	s := h.session()
	assert.Equal(t, "B", s.CurrentTurn.TeamName)
	assert.Equal(t, 60, s.Team("A").Score)
}

func TestGameStartedByLaterTeamGivesEveryTeamATurn(t *testing.T) {
	h := newHarness(t, 1, 60, []string{"A", "B", "C"}, nil)
	h.start("C")

	var order []string
	for i := 0; i < 3; i++ {
		s := h.session()
		require.False(t, s.Over, "over after %v", order)
		order = append(order, s.CurrentTurn.TeamName)
		assert.Equal(t, i+1, s.PlayingTurnIndex)
		h.clock.Advance(time.Duration(5+10*i) * time.Second)
		require.NoError(t, h.send(s.CurrentTurn.GuesserIDs[0], models.MessageGuess, "planet"))
	}

	assert.Equal(t, []string{"C", "A", "B"}, order)
	s := h.session()
	assert.True(t, s.Over)
	assert.Equal(t, []string{"C"}, s.Winners, "C guessed with the most time left")
}

func TestUnsavedEventsGetDistinctRecords(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	chatter := h.teams["B"][0]
	require.NoError(t, h.send(chatter, models.MessageChat, "hello"))
	require.NoError(t, h.send(chatter, models.MessageChat, "hi there"))

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	var chats []models.EventRecord
	for _, rec := range h.rec.recs {
		if rec.EventType == EventNewMessage {
			chats = append(chats, rec)
		}
	}
	require.Len(t, chats, 2)
	// neither line saved the session, so version and index repeat
	assert.Equal(t, chats[0].Version, chats[1].Version)
	assert.Equal(t, chats[0].Index, chats[1].Index)
	assert.NotEqual(t, uuid.Nil, chats[0].ID)
	assert.NotEqual(t, chats[0].ID, chats[1].ID)
}

func TestExpiryRacingCorrectGuessAdvancesOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
		h.start("A")
		s := h.session()
		guesser := s.CurrentTurn.GuesserIDs[0]
		h.bc.clear()

		var wg sync.WaitGroup
		var guessErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.engine.expire(s.ID, s.TurnSeq)
		}()
		go func() {
			defer wg.Done()
			guessErr = h.send(guesser, models.MessageGuess, "planet")
		}()
		wg.Wait()
		// the inbox is FIFO, so once this chat is handled the expiry has been too
		require.NoError(t, h.send(h.teams["B"][0], models.MessageChat, "sync"))

		if guessErr != nil {
			assert.Equal(t, gameerr.KindForbidden, gameerr.KindOf(guessErr))
		}
		assert.Equal(t, 1, h.bc.count(EventTurnStarted))
		assert.Equal(t, "B", h.bc.last(EventTurnStarted).payload["teamName"])

		after := h.session()
		assert.Equal(t, 2, after.PlayingTurnIndex)
		assert.Equal(t, s.TurnSeq+1, after.TurnSeq)
		assert.Equal(t, "B", after.CurrentTurn.TeamName)
		assert.Equal(t, 1, h.engine.timers.Len())
	}
}

func TestRestartedEngineResumesTurnCountdown(t *testing.T) {
	h := newHarness(t, 5, 60, []string{"A", "B"}, nil)
	h.start("A")
	h.engine.Close()

	// a fresh process finds the turn already overdue
	h.clock.Advance(2 * time.Hour)
	logger, _ := test.NewNullLogger()
	bc := &mockBroadcaster{}
	restarted := NewEngine(Deps{
		Store:       h.store,
		Words:       fixedWords{"planet"},
		Broadcaster: bc,
		Rand:        rand.New(rand.NewSource(3)),
		Now:         h.clock.Now,
		Logger:      logger,
	}, Config{TurnLength: func(int) time.Duration { return time.Hour }})
	t.Cleanup(restarted.Close)

	err := restarted.HandleMessage(context.Background(), models.SendMessage{
		GameID:      h.game.ID.String(),
		Sender:      h.teams["B"][0].String(),
		Content:     "anyone there?",
		MessageType: models.MessageChat,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return bc.last(EventTurnEnded) != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Time is up for team A.", bc.last(EventTurnEnded).payload["message"])
	require.Eventually(t, func() bool { return bc.last(EventTurnStarted) != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "B", bc.last(EventTurnStarted).payload["teamName"])
	assert.True(t, restarted.timers.Pending(h.game.ID))
}
