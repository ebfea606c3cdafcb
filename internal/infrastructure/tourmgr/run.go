package tourmgr

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/google/uuid"
)

// run is the execution context of one tour start.
//
// State changes happen under mu and are broadcast by closing wake and
// replacing it with a fresh channel. Stop is one-shot: cancel is called
// exactly once, ctx.Done is the signal the loop consumes.
type run struct {
	id    string
	token string

	ctx    context.Context    // cancelled on stop
	cancel context.CancelFunc // trigger stop
	prev   <-chan struct{}    // previous run's done, nil when there was none
	done   chan struct{}      // closed after the loop fully exits

	mu        sync.Mutex
	state     ptz.TourState
	wake      chan struct{}
	step      int
	passes    int
	failures  int
	lastError string
	startedAt time.Time
}

func newRun(token string, prev <-chan struct{}) *run {
	ctx, cancel := context.WithCancel(context.Background())
	return &run{
		id:        uuid.NewString(),
		token:     token,
		ctx:       ctx,
		cancel:    cancel,
		prev:      prev,
		done:      make(chan struct{}),
		state:     ptz.TourRunning,
		wake:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

// apply validates and performs a pause, resume or stop under the run lock.
func (r *run) apply(action ptz.TourAction) (ptz.TourState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.state.Next(action)
	if err != nil {
		return r.state, err
	}
	if next == r.state {
		return next, nil
	}
	r.setStateLocked(next)
	if next == ptz.TourStopping {
		r.cancel()
	}
	return next, nil
}

// finish marks the run terminal. Called once by the loop on exit.
func (r *run) finish(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reason != "" {
		r.lastError = reason
	}
	r.setStateLocked(ptz.TourStopped)
	r.cancel()
}

func (r *run) setStateLocked(s ptz.TourState) {
	r.state = s
	close(r.wake)
	r.wake = make(chan struct{})
}

func (r *run) observe() (ptz.TourState, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.wake
}

func (r *run) State() ptz.TourState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *run) setStep(i int) {
	r.mu.Lock()
	r.step = i
	r.mu.Unlock()
}

func (r *run) completePass() {
	r.mu.Lock()
	r.passes++
	r.step = 0
	r.mu.Unlock()
}

func (r *run) recordFailure(msg string) {
	r.mu.Lock()
	r.failures++
	r.lastError = msg
	r.mu.Unlock()
}

func (r *run) status() ptz.TourStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ptz.TourStatus{
		Token:     r.token,
		State:     r.state,
		RunID:     r.id,
		Step:      r.step,
		Passes:    r.passes,
		Failures:  r.failures,
		LastError: r.lastError,
		StartedAt: r.startedAt,
	}
}

// wait blocks for d of Running time. Paused time does not count: a pause
// freezes the remainder until resume. Returns false once stop is requested.
// wait(0) is the loop checkpoint: it blocks while paused and reports stop.
func (r *run) wait(d time.Duration) bool {
	remaining := d
	for {
		if r.ctx.Err() != nil {
			return false
		}
		state, wake := r.observe()
		switch state {
		case ptz.TourStopping, ptz.TourStopped:
			return false
		case ptz.TourPaused:
			select {
			case <-wake:
				continue
			case <-r.ctx.Done():
				return false
			}
		}
		if remaining <= 0 {
			return true
		}

		began := time.Now()
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			remaining = 0
		case <-wake:
			timer.Stop()
			remaining -= time.Since(began)
		case <-r.ctx.Done():
			timer.Stop()
			return false
		}
	}
}

// sleep blocks for d, interruptible only by stop.
func (r *run) sleep(d time.Duration) bool {
	if d <= 0 {
		return r.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}
