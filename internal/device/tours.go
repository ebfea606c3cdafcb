package device

import (
	"strings"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
)

// TourSpec describes a tour to create. An empty Token generates one.
type TourSpec struct {
	Token     string
	Name      string
	Steps     []ptz.TourStep
	AutoStart bool
	Condition ptz.StartingCondition
}

// TourPatch modifies a tour. Nil fields are left unchanged.
type TourPatch struct {
	Name      *string
	Steps     []ptz.TourStep
	AutoStart *bool
	Condition *ptz.StartingCondition
}

// ListTours returns tours in creation order.
func (d *Device) ListTours() []ptz.Tour {
	_, vals := d.tours.GetList()
	out := make([]ptz.Tour, len(vals))
	for i, t := range vals {
		out[i] = t.Clone()
	}
	return out
}

func (d *Device) GetTour(token string) (ptz.Tour, error) {
	t, ok := d.tours.GetOne(token)
	if !ok {
		return ptz.Tour{}, ptz.NotFound("tour.get", "tour %q not found", token)
	}
	return t.Clone(), nil
}

// CreateTour validates and stores a new tour. Every step must reference an
// existing preset. With AutoStart the tour is started before returning.
func (d *Device) CreateTour(spec TourSpec) (ptz.Tour, error) {
	const op = "tour.create"
	if err := validateTour(op, spec.Steps, spec.Condition); err != nil {
		return ptz.Tour{}, err
	}
	token := strings.TrimSpace(spec.Token)

	d.mu.Lock()
	if err := d.checkRefsLocked(op, spec.Steps); err != nil {
		d.mu.Unlock()
		return ptz.Tour{}, err
	}
	if token == "" {
		token = d.nextTokenLocked(&d.tourSeq, "tour", d.tours.Has)
	} else if d.tours.Has(token) {
		d.mu.Unlock()
		return ptz.Tour{}, ptz.Conflict(op, "tour %q already exists", token)
	}

	t := ptz.Tour{
		Token:     token,
		Name:      spec.Name,
		Steps:     append([]ptz.TourStep(nil), spec.Steps...),
		AutoStart: spec.AutoStart,
		Condition: spec.Condition,
	}
	if t.Name == "" {
		t.Name = token
	}
	d.tours.Insert(token, t)
	d.mu.Unlock()

	d.log.Info("tour created", zap.String("token", token), zap.Int("steps", len(t.Steps)))

	if t.AutoStart {
		if _, err := d.runner.Start(token); err != nil {
			d.log.Warn("tour auto start failed", zap.String("token", token), zap.Error(err))
		}
	}
	return t.Clone(), nil
}

// ModifyTour updates a tour in place. A running tour picks up the change at
// the start of its next pass.
func (d *Device) ModifyTour(token string, patch TourPatch) (ptz.Tour, error) {
	const op = "tour.modify"

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tours.GetOne(token)
	if !ok {
		return ptz.Tour{}, ptz.NotFound(op, "tour %q not found", token)
	}
	t = t.Clone()

	if patch.Steps != nil {
		t.Steps = append([]ptz.TourStep(nil), patch.Steps...)
	}
	if patch.Condition != nil {
		t.Condition = *patch.Condition
	}
	if err := validateTour(op, t.Steps, t.Condition); err != nil {
		return ptz.Tour{}, err
	}
	if patch.Steps != nil {
		if err := d.checkRefsLocked(op, t.Steps); err != nil {
			return ptz.Tour{}, err
		}
	}
	if patch.Name != nil && *patch.Name != "" {
		t.Name = *patch.Name
	}
	if patch.AutoStart != nil {
		t.AutoStart = *patch.AutoStart
	}

	d.tours.Update(token, t)
	d.log.Info("tour modified", zap.String("token", token), zap.Int("steps", len(t.Steps)))
	return t.Clone(), nil
}

// DeleteTour stops the tour's run and removes it.
func (d *Device) DeleteTour(token string) error {
	d.mu.Lock()
	ok := d.tours.Delete(token)
	d.mu.Unlock()

	if !ok {
		return ptz.NotFound("tour.delete", "tour %q not found", token)
	}
	d.runner.Forget(token)
	d.log.Info("tour deleted", zap.String("token", token))
	return nil
}

// OperateTour applies a start/stop/pause/resume action.
func (d *Device) OperateTour(token string, action ptz.TourAction) (ptz.TourStatus, error) {
	st, err := d.runner.Operate(token, action)
	if err != nil {
		return st, err
	}
	d.log.Info("tour operated", zap.String("token", token), zap.String("action", string(action)), zap.String("state", string(st.State)))
	return st, nil
}

func (d *Device) TourStatus(token string) (ptz.TourStatus, error) {
	if !d.tours.Has(token) {
		return ptz.TourStatus{}, ptz.NotFound("tour.status", "tour %q not found", token)
	}
	return d.runner.Status(token), nil
}

// TourEvents returns the last n events of the tour, newest first.
func (d *Device) TourEvents(token string, n int) ([]tourmgr.Event, error) {
	if !d.tours.Has(token) {
		return nil, ptz.NotFound("tour.events", "tour %q not found", token)
	}
	return d.runner.Events(token, n), nil
}

// TourStates returns the run state of every tour, idle for tours never started.
func (d *Device) TourStates() map[string]ptz.TourState {
	keys, _ := d.tours.GetList()
	runs := d.runner.States()

	out := make(map[string]ptz.TourState, len(keys))
	for _, k := range keys {
		if s, ok := runs[k]; ok {
			out[k] = s
		} else {
			out[k] = ptz.TourIdle
		}
	}
	return out
}

func validateTour(op string, steps []ptz.TourStep, cond ptz.StartingCondition) error {
	if err := ptz.ValidateSteps(op, steps); err != nil {
		return err
	}
	if cond.RecurringGap < 0 {
		return ptz.InvalidArgument(op, "negative recurring gap")
	}
	return nil
}

func (d *Device) checkRefsLocked(op string, steps []ptz.TourStep) error {
	for i, s := range steps {
		if !d.presets.Has(s.PresetToken) {
			return ptz.InvalidArgument(op, "step %d references unknown preset %q", i, s.PresetToken)
		}
	}
	return nil
}
