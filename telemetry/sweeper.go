package telemetry

import (
	"context"
	"log"
	"time"
)

// SessionSweeper periodically forgets gate entries for sessions older than
// the session TTL. The session cookie has expired by then, so a returning
// browser gets a new handle anyway.
type SessionSweeper struct {
	gate     *SessionGate
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSessionSweeper creates a sweeper but does not start it. interval
// defaults to ttl/4, and never less than a minute.
func NewSessionSweeper(gate *SessionGate, ttl, interval time.Duration, logger *log.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = ttl / 4
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	return &SessionSweeper{
		gate:     gate,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the background loop. It exits when ctx is cancelled or
// Stop is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	if s.ttl <= 0 {
		s.logger.Printf("session sweeper disabled (ttl=0)")
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)

	s.logger.Printf("session sweeper started (ttl=%s, interval=%s)", s.ttl, s.interval)
}

// Stop signals the sweeper to exit and waits for it.
func (s *SessionSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *SessionSweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep forgets sessions last touched more than ttl before now.
func (s *SessionSweeper) Sweep(now time.Time) int {
	n := s.gate.Forget(now.Add(-s.ttl))
	if n > 0 {
		s.logger.Printf("session sweep: forgot %d sessions", n)
	}
	return n
}
