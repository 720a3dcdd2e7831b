// internal/timer/timer.go
package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type pending struct {
	t   *time.Timer
	gen uint64
}

// SessionTimer keeps at most one pending countdown per session.
type SessionTimer struct {
	mu      sync.Mutex
	gen     uint64
	pending map[uuid.UUID]pending
}

func NewSessionTimer() *SessionTimer {
	return &SessionTimer{pending: make(map[uuid.UUID]pending)}
}

// Start schedules onExpire to run once after d, replacing any countdown already pending for sessionID.
// onExpire runs on its own goroutine.
func (st *SessionTimer) Start(sessionID uuid.UUID, d time.Duration, onExpire func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if p, ok := st.pending[sessionID]; ok {
		p.t.Stop()
	}
	st.gen++
	gen := st.gen
	st.pending[sessionID] = pending{
		gen: gen,
		t: time.AfterFunc(d, func() {
			// a replaced or cancelled timer may already be running; only the current generation fires
			st.mu.Lock()
			p, ok := st.pending[sessionID]
			if !ok || p.gen != gen {
				st.mu.Unlock()
				return
			}
			delete(st.pending, sessionID)
			st.mu.Unlock()
			onExpire()
		}),
	}
}

// Cancel drops the pending countdown for sessionID, if any.
func (st *SessionTimer) Cancel(sessionID uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if p, ok := st.pending[sessionID]; ok {
		p.t.Stop()
		delete(st.pending, sessionID)
	}
}

// Pending reports whether a countdown is scheduled for sessionID.
func (st *SessionTimer) Pending(sessionID uuid.UUID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.pending[sessionID]
	return ok
}

// Len is the number of sessions with a pending countdown.
func (st *SessionTimer) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}

// CancelAll stops every pending countdown.
func (st *SessionTimer) CancelAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, p := range st.pending {
		p.t.Stop()
		delete(st.pending, id)
	}
}
