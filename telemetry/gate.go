package telemetry

import (
	"sync"
	"time"
)

type SessionState int

const (
	NotLogged SessionState = iota
	Logging
	Logged
)

func (s SessionState) String() string {
	switch s {
	case Logging:
		return "LOGGING"
	case Logged:
		return "LOGGED"
	default:
		return "NOT_LOGGED"
	}
}

type gateEntry struct {
	state   SessionState
	touched time.Time
}

// SessionGate remembers, per session handle, whether the access pipeline has
// already run. Sessions never move back to NotLogged except by being
// forgotten after they expire.
type SessionGate struct {
	mu       sync.Mutex
	sessions map[string]gateEntry
	now      func() time.Time
}

func NewSessionGate() *SessionGate {
	return &SessionGate{
		sessions: make(map[string]gateEntry),
		now:      time.Now,
	}
}

// ShouldLog reports whether id is still NOT_LOGGED. A session claimed by
// Begin is LOGGING and reports false before MarkLogged runs.
func (g *SessionGate) ShouldLog(id string) bool {
	return g.State(id) == NotLogged && id != ""
}

// Begin moves id from NotLogged to Logging and reports whether it did.
// Only the caller that gets true may run the pipeline.
func (g *SessionGate) Begin(id string) bool {
	if id == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.sessions[id]; ok && e.state != NotLogged {
		return false
	}
	g.sessions[id] = gateEntry{state: Logging, touched: g.now()}
	return true
}

// MarkLogged closes the gate for id. Calling it again is a no-op.
func (g *SessionGate) MarkLogged(id string) {
	if id == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.sessions[id]; ok && e.state == Logged {
		return
	}
	g.sessions[id] = gateEntry{state: Logged, touched: g.now()}
}

func (g *SessionGate) State(id string) SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[id].state
}

// Forget drops sessions last touched before cutoff that are not mid-run.
// It returns the number of entries removed.
func (g *SessionGate) Forget(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, e := range g.sessions {
		if e.state == Logging {
			continue
		}
		if e.touched.Before(cutoff) {
			delete(g.sessions, id)
			n++
		}
	}
	return n
}

func (g *SessionGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}
