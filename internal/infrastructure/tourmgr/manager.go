package tourmgr

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap"
)

// Target is the device a Manager drives. Implementations must be safe for
// concurrent use and must not call back into the Manager while holding
// their own locks.
type Target interface {
	// Tour returns the current definition. Re-read at the start of each pass.
	Tour(token string) (ptz.Tour, bool)
	Preset(token string) (ptz.Preset, bool)
	// TourMove applies an instantaneous move and marks the device moving.
	TourMove(pos ptz.Vector, speed float64)
	// TourSettle marks the device idle after a tour move.
	TourSettle()
}

type Options struct {
	Device       string        // device key stamped on events
	SettleTime   time.Duration // how long a tour move reports "moving"
	IdleBackoff  time.Duration // wait after a pass that dwelled nowhere
	EventLogSize int           // per-tour history, 1..MaxEventLog
	Notifier     Notifier
}

func (o *Options) setDefaults() {
	if o.SettleTime < 0 {
		o.SettleTime = 0
	}
	if o.IdleBackoff <= 0 {
		o.IdleBackoff = time.Second
	}
	if o.EventLogSize <= 0 || o.EventLogSize > MaxEventLog {
		o.EventLogSize = MaxEventLog
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
}

// Manager coordinates the tour runs of one device.
// It is safe for concurrent use.
//
// Run Lifecycle:
//   - Operate(token, start): spawns a loop goroutine for the tour.
//     No-op if a run is already running or paused.
//   - Operate(token, stop): signals the loop and returns immediately.
//     The loop unwinds at its next checkpoint and the run becomes stopped.
//   - Forget(token): stops the run and drops its record and history.
//
// Restart Semantics:
//
//	A start issued while the previous run is still stopping, or after the
//	tour was forgotten while its loop was still unwinding, creates the new
//	run immediately. Its loop waits for the old loop to exit before the
//	first move, so two loops never drive the device at once.
type Manager struct {
	log    *zap.Logger
	target Target
	opts   Options

	mu      sync.Mutex                 // guards runs, events, exiting and closed
	runs    map[string]*run            // latest run per tour token
	events  map[string]*eventBuffer    // per-tour history, kept across runs
	exiting map[string]<-chan struct{} // done of forgotten runs whose loop may still be live
	closed  bool                       // set by StopAll; no new runs afterwards

	wg sync.WaitGroup // live loops
}

func NewManager(log *zap.Logger, target Target, opts Options) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	return &Manager{
		log:    log.Named("tourmgr"),
		target: target,
		opts:   opts,
		runs:    make(map[string]*run),
		events:  make(map[string]*eventBuffer),
		exiting: make(map[string]<-chan struct{}),
	}
}

// Operate applies action to the tour identified by token.
//
// Returns NotFound for an unknown tour and InvalidTransition when the action
// is not valid in the current state. start on a running or paused tour is a
// no-op returning the current status.
func (m *Manager) Operate(token string, action ptz.TourAction) (ptz.TourStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.target.Tour(token); !ok {
		return ptz.TourStatus{}, ptz.NotFound("tour.operate", "tour %q not found", token)
	}

	r := m.runs[token]
	if action != ptz.ActionStart {
		if r == nil {
			_, err := ptz.TourIdle.Next(action)
			return idleStatus(token), err
		}
		prevState := r.State()
		state, err := r.apply(action)
		if err != nil {
			return r.status(), err
		}
		if state != prevState {
			m.recordLocked(r, eventForAction(action), r.status().Step, "", "")
		}
		return r.status(), nil
	}

	if m.closed {
		st := idleStatus(token)
		if r != nil {
			st = r.status()
		}
		return st, ptz.InvalidTransition("tour.operate", "tour manager is shut down")
	}

	prev := m.exiting[token]
	if r != nil {
		switch r.State() {
		case ptz.TourRunning, ptz.TourPaused:
			return r.status(), nil
		case ptz.TourStopping:
			prev = r.done
		}
	}

	nr := newRun(token, prev)
	m.runs[token] = nr
	m.recordLocked(nr, EventStarted, 0, "", "")

	m.wg.Add(1)
	go m.supervise(nr)

	return nr.status(), nil
}

// Start is Operate(token, start) for callers that start tours internally.
func (m *Manager) Start(token string) (ptz.TourStatus, error) {
	return m.Operate(token, ptz.ActionStart)
}

// Status returns the state of the latest run, or idle when the tour never ran.
func (m *Manager) Status(token string) ptz.TourStatus {
	m.mu.Lock()
	r := m.runs[token]
	m.mu.Unlock()

	if r == nil {
		return idleStatus(token)
	}
	return r.status()
}

// States returns the state of every tour that has a run record.
func (m *Manager) States() map[string]ptz.TourState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ptz.TourState, len(m.runs))
	for token, r := range m.runs {
		out[token] = r.State()
	}
	return out
}

// Events returns the last n events of a tour, newest → oldest.
func (m *Manager) Events(token string, n int) []Event {
	m.mu.Lock()
	buf, ok := m.events[token]
	m.mu.Unlock()

	if !ok {
		return []Event{}
	}
	return buf.Read(n)
}

// Forget stops the tour's run, if any, and drops its record and history.
//
// Idempotent. Non-blocking: returns before the loop exits. A later start
// of the same token waits for that loop before its first move.
func (m *Manager) Forget(token string) {
	m.mu.Lock()
	r := m.runs[token]
	delete(m.runs, token)
	delete(m.events, token)
	if r != nil {
		m.exiting[token] = r.done
	}
	m.mu.Unlock()

	if r != nil {
		_, _ = r.apply(ptz.ActionStop)
		r.cancel()
	}
}

// StopAll stops every run and waits for the loops to exit or ctx to end.
// Later starts are rejected with InvalidTransition.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.runs {
		if _, err := r.apply(ptz.ActionStop); err == nil {
			m.recordLocked(r, EventStopping, r.status().Step, "", "shutdown")
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) record(r *run, typ EventType, step int, preset, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(r, typ, step, preset, msg)
}

func (m *Manager) recordLocked(r *run, typ EventType, step int, preset, msg string) {
	ev := Event{
		Device:  m.opts.Device,
		Tour:    r.token,
		RunID:   r.id,
		Type:    typ,
		Step:    step,
		Preset:  preset,
		Message: msg,
		At:      time.Now(),
	}

	// Only the current run of a tour writes history. Events of forgotten or
	// replaced runs still reach the notifier.
	if cur, ok := m.runs[r.token]; ok && cur == r {
		buf, ok := m.events[r.token]
		if !ok {
			buf = newEventBuffer(m.opts.EventLogSize)
			m.events[r.token] = buf
		}
		buf.Append(ev)
	}
	m.opts.Notifier.Notify(ev)
}

func eventForAction(a ptz.TourAction) EventType {
	switch a {
	case ptz.ActionPause:
		return EventPaused
	case ptz.ActionResume:
		return EventResumed
	case ptz.ActionStop:
		return EventStopping
	}
	return EventStarted
}

// releaseExiting drops the forgotten-run marker once r's loop no longer
// touches the device.
func (m *Manager) releaseExiting(r *run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done, ok := m.exiting[r.token]; ok && done == r.done {
		delete(m.exiting, r.token)
	}
}

func idleStatus(token string) ptz.TourStatus {
	return ptz.TourStatus{Token: token, State: ptz.TourIdle}
}
