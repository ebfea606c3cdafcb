package tourmgr

import (
	"fmt"
	"math/rand/v2"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap"
)

// supervise runs the tour loop until the run is stopped.
// It handles:
//   - waiting for a still-stopping previous run to exit
//   - re-reading the tour definition at the start of every pass
//   - skipping steps whose preset no longer exists
//   - pause-aware, interruptible dwell between moves
//   - panic isolation: a panicking loop ends only its own run
func (m *Manager) supervise(r *run) {
	log := m.log.With(zap.String("device", m.opts.Device), zap.String("tour", r.token), zap.String("run_id", r.id))
	log.Info("tour loop started")

	moving := false
	reason := ""

	defer m.wg.Done()
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			reason = fmt.Sprintf("panic: %v", rec)
			log.Error("tour loop panicked", zap.Any("panic", rec))
			m.record(r, EventPanic, r.status().Step, "", reason)
		}
		if moving {
			m.settle(log)
		}
		r.finish(reason)
		m.record(r, EventStopped, r.status().Step, "", reason)
		m.releaseExiting(r)
		log.Info("tour loop exited", zap.String("reason", reason))
	}()

	if r.prev != nil {
		select {
		case <-r.prev:
		case <-r.ctx.Done():
			return
		}
	}

	for {
		if !r.wait(0) {
			return
		}

		tour, ok := m.target.Tour(r.token)
		if !ok {
			reason = "tour removed"
			return
		}

		steps := tour.Steps
		if tour.Condition.RandomOrder {
			steps = append([]ptz.TourStep(nil), steps...)
			rand.Shuffle(len(steps), func(i, j int) { steps[i], steps[j] = steps[j], steps[i] })
		}

		dwelled := false
		for i, step := range steps {
			r.setStep(i)
			if !r.wait(0) {
				return
			}

			preset, ok := m.target.Preset(step.PresetToken)
			if !ok {
				msg := fmt.Sprintf("step %d: preset %q not found", i, step.PresetToken)
				r.recordFailure(msg)
				m.record(r, EventStepFailed, i, step.PresetToken, msg)
				log.Warn("tour step skipped", zap.Int("step", i), zap.String("preset", step.PresetToken))
				continue
			}

			m.target.TourMove(preset.Position, step.Speed)
			moving = true
			m.record(r, EventStep, i, step.PresetToken, "")

			settle := min(m.opts.SettleTime, step.Dwell)
			if !r.sleep(settle) {
				return
			}
			m.target.TourSettle()
			moving = false

			if !r.wait(step.Dwell - settle) {
				return
			}
			if step.Dwell > 0 {
				dwelled = true
			}
		}

		r.completePass()
		m.record(r, EventPass, 0, "", "")

		gap := tour.Condition.RecurringGap
		if !dwelled {
			gap = max(gap, m.opts.IdleBackoff)
		}
		if !r.wait(gap) {
			return
		}
	}
}

func (m *Manager) settle(log *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("settle after tour exit panicked", zap.Any("panic", rec))
		}
	}()
	m.target.TourSettle()
}
