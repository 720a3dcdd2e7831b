// internal/game/worker.go
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/sirupsen/logrus"
)

type commandKind int

const (
	cmdMessage commandKind = iota
	cmdStartTurn
	cmdExpire
)

func (k commandKind) String() string {
	switch k {
	case cmdMessage:
		return "message"
	case cmdStartTurn:
		return "start_turn"
	case cmdExpire:
		return "expire"
	}
	return "unknown"
}

// command is one unit of work on a session's inbox.
type command struct {
	kind    commandKind
	sender  uuid.UUID
	msg     models.SendMessage
	team    string
	turnSeq int

	// reply is buffered; nil for timer expiries.
	reply chan error
}

type timerAction int

const (
	timerKeep timerAction = iota
	timerRestart
	timerCancel
)

// outcome is what a handling produced. Nothing is saved unless dirty.
type outcome struct {
	dirty  bool
	timer  timerAction
	events []Event
}

type worker struct {
	id    uuid.UUID
	inbox chan command

	// refs counts submitters between lookup and enqueue; guarded by Engine.mu.
	refs int

	// resumed is set once the worker has re-armed the countdown of a turn it loaded;
	// only the worker goroutine touches it.
	resumed bool
}

// submit hands cmd to the session's worker and waits for the result.
func (e *Engine) submit(ctx context.Context, gameID uuid.UUID, cmd command) error {
	cmd.reply = make(chan error, 1)
	if err := e.dispatch(ctx, gameID, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineClosed
	}
}

func (e *Engine) dispatch(ctx context.Context, gameID uuid.UUID, cmd command) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	w, ok := e.workers[gameID]
	if !ok {
		w = &worker{id: gameID, inbox: make(chan command, e.cfg.InboxSize)}
		e.workers[gameID] = w
		e.wg.Add(1)
		go e.run(w)
	}
	w.refs++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		w.refs--
		e.mu.Unlock()
	}()

	select {
	case w.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineClosed
	}
}

// run is the session's single mutator. It exits after IdleTimeout without work.
func (e *Engine) run(w *worker) {
	defer e.wg.Done()
	idle := time.NewTimer(e.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-e.done:
			return
		case cmd := <-w.inbox:
			e.process(w, cmd)
			idle.Reset(e.cfg.IdleTimeout)
		case <-idle.C:
			if e.retire(w) {
				return
			}
			idle.Reset(e.cfg.IdleTimeout)
		}
	}
}

func (e *Engine) retire(w *worker) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w.refs > 0 || len(w.inbox) > 0 {
		return false
	}
	delete(e.workers, w.id)
	return true
}

// Workers reports the number of live session workers.
func (e *Engine) Workers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.workers)
}

func (e *Engine) process(w *worker, cmd command) {
	gameID := w.id
	log := e.log.WithFields(logrus.Fields{"game": gameID, "command": cmd.kind.String()})
	var err error
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while handling command: %v", r)
			err = gameerr.New(gameerr.KindInternal, "internal error")
		}
		if err != nil && cmd.kind != cmdExpire {
			e.notify(context.Background(), RoomKey(gameID), cmd.sender, err)
		}
		if cmd.reply != nil {
			cmd.reply <- err
		}
	}()

	switch cmd.kind {
	case cmdMessage:
		err = e.transact(w, log.WithField("player", cmd.sender), func(ctx context.Context, s *models.GameSession) (outcome, error) {
			return e.applyMessage(ctx, s, cmd.sender, cmd.msg)
		})
	case cmdStartTurn:
		err = e.transact(w, log.WithFields(logrus.Fields{"player": cmd.sender, "team": cmd.team}), func(ctx context.Context, s *models.GameSession) (outcome, error) {
			return e.applyStartTurn(ctx, s, cmd.sender, cmd.team)
		})
	case cmdExpire:
		err = e.transact(w, log.WithField("turn", cmd.turnSeq), func(ctx context.Context, s *models.GameSession) (outcome, error) {
			return e.applyExpiry(ctx, s, cmd.turnSeq)
		})
		if err != nil {
			// the turn is left as stored; no new countdown is scheduled
			log.WithError(err).Error("turn expiry failed, session stalled")
		}
	default:
		err = gameerr.Newf(gameerr.KindInternal, "unknown command %d", cmd.kind)
	}
}

// transact is one read-modify-write of a session: load, mutate, save, then timers and broadcasts.
// A version conflict reloads and re-applies mutate. A failed save discards the mutation
// and nothing is broadcast.
func (e *Engine) transact(w *worker, log logrus.FieldLogger, mutate func(ctx context.Context, s *models.GameSession) (outcome, error)) error {
	gameID := w.id
	var (
		s   *models.GameSession
		out outcome
	)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		loaded, err := e.store.Load(ctx, gameID)
		if err != nil {
			cancel()
			return loadError(err)
		}
		e.resume(w, loaded, log)
		out, err = mutate(ctx, loaded)
		if err != nil {
			cancel()
			return err
		}
		if !out.dirty {
			cancel()
			s = loaded
			break
		}
		err = e.store.Save(ctx, loaded)
		cancel()
		if err == nil {
			s = loaded
			break
		}
		if errors.Is(err, gameerr.ErrVersionConflict) && attempt < e.cfg.SaveAttempts {
			log.WithField("attempt", attempt).Debug("version conflict, retrying")
			continue
		}
		log.WithError(err).Warn("session save failed")
		return gameerr.Persistence(err)
	}

	switch out.timer {
	case timerRestart:
		e.timers.Cancel(gameID)
		seq := s.TurnSeq
		e.timers.Start(gameID, e.cfg.TurnLength(s.TimePerTurn), func() { e.expire(gameID, seq) })
	case timerCancel:
		e.timers.Cancel(gameID)
	}

	e.publish(s, out.events, log)
	return nil
}

// resume re-arms the countdown of an active turn the first time a worker loads its session,
// so turns started before a restart still run out. The remaining time is measured from
// TurnStartTimestamp; an overdue turn expires at once.
func (e *Engine) resume(w *worker, s *models.GameSession, log logrus.FieldLogger) {
	if w.resumed {
		return
	}
	w.resumed = true
	if _, ok := s.ActiveTurn(); !ok || e.timers.Pending(s.ID) {
		return
	}
	left := max(e.cfg.TurnLength(s.TimePerTurn)-e.now().Sub(s.TurnStartTimestamp), 0)
	seq := s.TurnSeq
	gameID := s.ID
	e.timers.Start(gameID, left, func() { e.expire(gameID, seq) })
	log.WithField("remaining", left).Info("re-armed turn countdown")
}

// expire is the countdown callback; it queues the expiry like any other message.
func (e *Engine) expire(gameID uuid.UUID, turnSeq int) {
	err := e.dispatch(context.Background(), gameID, command{kind: cmdExpire, turnSeq: turnSeq})
	if err != nil && !errors.Is(err, ErrEngineClosed) {
		e.log.WithError(err).WithField("game", gameID).Error("could not queue turn expiry")
	}
}

// publish broadcasts events in order. Failures are logged and never undo the saved state.
func (e *Engine) publish(s *models.GameSession, events []Event, log logrus.FieldLogger) {
	room := RoomKey(s.ID)
	for i, ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		if e.bc != nil {
			if err := e.bc.Emit(ctx, room, ev.Name, ev.Payload); err != nil {
				log.WithError(gameerr.Wrap(gameerr.KindBroadcast, "broadcast failed", err)).WithField("event", ev.Name).Warn("event not delivered")
			}
		}
		if e.rec != nil {
			rec := models.EventRecord{
				ID:        uuid.New(),
				GameID:    s.ID,
				Version:   s.Version,
				Index:     i,
				EventType: ev.Name,
				Payload:   ev.Payload,
				Timestamp: e.now().UnixMilli(),
			}
			if err := e.rec.Record(ctx, rec); err != nil {
				log.WithError(err).WithField("event", ev.Name).Warn("event not recorded")
			}
		}
		cancel()
	}
}

// notify sends err to the sender alone. Senders without a usable id cannot be addressed.
func (e *Engine) notify(ctx context.Context, room string, recipient uuid.UUID, err error) {
	if e.bc == nil || recipient == uuid.Nil || room == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	payload := errorPayload(gameerr.Public(err), string(gameerr.KindOf(err)))
	if sendErr := e.bc.EmitTo(ctx, room, recipient, EventError, payload); sendErr != nil {
		e.log.WithError(sendErr).WithField("player", recipient).Warnf("could not deliver error %q", gameerr.Public(err))
	}
}
