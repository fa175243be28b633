package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"logisticsassist/api/models"
)

// IdentitySource resolves who is visiting. It must not fail.
type IdentitySource interface {
	Resolve(ctx context.Context, req IdentityRequest) Identity
}

type Geolocator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev models.AccessEvent) error
}

type EventRecorder interface {
	Record(ctx context.Context, ev models.AccessEvent) error
}

// Report summarises one pipeline run for diagnostics and tests.
type Report struct {
	SessionID string
	Event     models.AccessEvent
	Failures  []*Failure
}

// Failed reports whether the given step fell back to its default.
func (r Report) Failed(step string) bool {
	for _, f := range r.Failures {
		if f.Step == step {
			return true
		}
	}
	return false
}

type PipelineConfig struct {
	Identity IdentitySource
	Geo      Geolocator
	Notifier Notifier
	Recorder EventRecorder
	Gate     *SessionGate
	Logger   *log.Logger
	Location *time.Location

	// RunTimeout bounds a whole run. Zero means 15s.
	RunTimeout time.Duration
	// OnComplete, if set, receives every finished report.
	OnComplete func(Report)
}

// Pipeline turns a page activation into at most one AccessEvent per session.
// Runs are dispatched on their own goroutines and never touch the caller's
// response; failures are logged and mapped to defaults.
type Pipeline struct {
	identity   IdentitySource
	geo        Geolocator
	notifier   Notifier
	recorder   EventRecorder
	gate       *SessionGate
	logger     *log.Logger
	loc        *time.Location
	runTimeout time.Duration
	onComplete func(Report)
	now        func() time.Time

	mu      sync.Mutex // guards baseCtx cancellation against wg.Add
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	gate := cfg.Gate
	if gate == nil {
		gate = NewSessionGate()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		identity:   cfg.Identity,
		geo:        cfg.Geo,
		notifier:   cfg.Notifier,
		recorder:   cfg.Recorder,
		gate:       gate,
		logger:     cfg.Logger,
		loc:        loc,
		runTimeout: timeout,
		onComplete: cfg.OnComplete,
		now:        time.Now,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

func (p *Pipeline) Gate() *SessionGate { return p.gate }

// Trigger starts a background run for sessionID unless the session has
// already been logged or is being logged. It reports whether a run started.
func (p *Pipeline) Trigger(sessionID string, req IdentityRequest) bool {
	p.mu.Lock()
	if p.baseCtx.Err() != nil || !p.gate.Begin(sessionID) {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.baseCtx, p.runTimeout)
		defer cancel()
		rep := p.run(ctx, sessionID, req)
		if p.onComplete != nil {
			p.onComplete(rep)
		}
	}()
	return true
}

// Run executes the pipeline synchronously for sessionID if the gate allows
// it. The zero Report is returned when the session was already handled.
func (p *Pipeline) Run(ctx context.Context, sessionID string, req IdentityRequest) (Report, bool) {
	if !p.gate.Begin(sessionID) {
		return Report{}, false
	}
	return p.run(ctx, sessionID, req), true
}

func (p *Pipeline) run(ctx context.Context, sessionID string, req IdentityRequest) (rep Report) {
	rep.SessionID = sessionID
	defer p.gate.MarkLogged(sessionID)
	defer func() {
		if r := recover(); r != nil {
			f := fail("pipeline", ReasonPanic, fmt.Errorf("%v", r))
			rep.Failures = append(rep.Failures, f)
			p.logger.Printf("access pipeline for session %s: %v", sessionID, f)
		}
	}()

	id := p.identity.Resolve(ctx, req)

	ev := models.AccessEvent{
		SessionID: sessionID,
		Timestamp: p.now().In(p.loc).Truncate(time.Millisecond),
		IP:        id.IP,
	}
	if ev.IP == "" {
		ev.IP = models.IPUnavailable
	}
	if id.UserAgent != "" {
		ua := id.UserAgent
		browser := ClassifyBrowser(ua)
		ev.UserAgent = &ua
		ev.Browser = &browser
	}

	loc, err := p.geo.Lookup(ctx, id.IP)
	if err != nil {
		rep.Failures = append(rep.Failures, p.note(sessionID, "geo", err))
		loc = UnknownLocation
	}
	ev.City, ev.Country = loc.City, loc.Country
	rep.Event = ev

	// Persistence and notification are independent once the event is built.
	var (
		wg                  sync.WaitGroup
		recordErr, notifErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverStep("record", &recordErr)
		recordErr = p.recorder.Record(ctx, ev)
	}()
	go func() {
		defer wg.Done()
		defer recoverStep("notify", &notifErr)
		notifErr = p.notifier.Notify(ctx, ev)
	}()
	wg.Wait()

	if recordErr != nil {
		rep.Failures = append(rep.Failures, p.note(sessionID, "record", recordErr))
	}
	if notifErr != nil {
		rep.Failures = append(rep.Failures, p.note(sessionID, "notify", notifErr))
	}
	return rep
}

func recoverStep(step string, errp *error) {
	if r := recover(); r != nil {
		*errp = fail(step, ReasonPanic, fmt.Errorf("%v", r))
	}
}

// note converts err to a *Failure and logs it, except for the quiet cases:
// a missing input or a collaborator that is switched off.
func (p *Pipeline) note(sessionID, step string, err error) *Failure {
	var f *Failure
	if !errors.As(err, &f) {
		f = fail(step, ReasonTransport, err)
	}
	switch f.Reason {
	case ReasonMissingInput, ReasonNotConfigured:
	default:
		p.logger.Printf("access pipeline for session %s: %v", sessionID, f)
	}
	return f
}

// Shutdown cancels in-flight runs and waits for them to return, or for ctx
// to expire.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every run started so far has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
