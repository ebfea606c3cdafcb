package dto

import (
	"time"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
)

// Move is the body of POST /api/ptz/{absolute,relative}-move.
// For a relative move the vector is a delta.
type Move struct {
	Pan   float64 `json:"pan"`   // required; float
	Tilt  float64 `json:"tilt"`  // required; float
	Zoom  float64 `json:"zoom"`  // required; float
	Speed float64 `json:"speed"` // optional; [0, 1] (default: 0 = device default)
}

func (m Move) Vector() ptz.Vector {
	return ptz.Vector{Pan: m.Pan, Tilt: m.Tilt, Zoom: m.Zoom}
}

// Velocity is the body of POST /api/ptz/continuous-move.
type Velocity struct {
	Pan  float64 `json:"pan"`  // [-1, 1]
	Tilt float64 `json:"tilt"` // [-1, 1]
	Zoom float64 `json:"zoom"` // [-1, 1]
}

func (v Velocity) Vector() ptz.Vector {
	return ptz.Vector{Pan: v.Pan, Tilt: v.Tilt, Zoom: v.Zoom}
}

// Goto is the optional body of goto-preset and goto-home.
type Goto struct {
	Token string  `json:"token"` // goto-preset only
	Speed float64 `json:"speed"` // optional; [0, 1]
}

// PresetSet is the body of POST /api/ptz/presets and /api/ptz/presets/create.
//   - Token empty → generated.
//   - Position omitted → current device position.
type PresetSet struct {
	Token    string      `json:"token"`    // optional
	Name     string      `json:"name"`     // optional; defaults to token
	Position *ptz.Vector `json:"position"` // optional
}

// PresetUpdate is the body of PUT /api/ptz/presets/{token}.
type PresetUpdate struct {
	Name     *string     `json:"name"`     // optional
	Position *ptz.Vector `json:"position"` // optional
}

// TourStep carries dwell in milliseconds on the wire.
type TourStep struct {
	PresetToken string  `json:"preset_token"` // required
	Speed       float64 `json:"speed"`        // optional; [0, 1]
	DwellMS     int64   `json:"dwell_ms"`     // required; >= 0
}

type StartingCondition struct {
	RandomOrder    bool  `json:"random_order"`
	RecurringGapMS int64 `json:"recurring_gap_ms"`
}

// TourCreate is the body of POST /api/ptz/tours.
type TourCreate struct {
	Token     string             `json:"token"`      // optional; generated when empty
	Name      string             `json:"name"`       // optional; defaults to token
	Steps     []TourStep         `json:"steps"`      // required; non-empty
	AutoStart bool               `json:"auto_start"` // optional (default: false)
	Condition *StartingCondition `json:"starting_condition"`
}

// TourModify is the body of PUT /api/ptz/tours/{token}. Omitted fields keep
// their current value.
type TourModify struct {
	Name      *string            `json:"name"`
	Steps     []TourStep         `json:"steps"`
	AutoStart *bool              `json:"auto_start"`
	Condition *StartingCondition `json:"starting_condition"`
}

// TourOperate is the body of POST /api/ptz/tours/{token}/operate.
type TourOperate struct {
	Action string `json:"action"` // start | stop | pause | resume
}

// Tour is the wire view of ptz.Tour.
type Tour struct {
	Token     string            `json:"token"`
	Name      string            `json:"name"`
	Steps     []TourStep        `json:"steps"`
	AutoStart bool              `json:"auto_start"`
	Condition StartingCondition `json:"starting_condition"`
}

// ToSpec maps TourCreate → device.TourSpec.
func (req *TourCreate) ToSpec() device.TourSpec {
	spec := device.TourSpec{
		Token:     req.Token,
		Name:      req.Name,
		Steps:     toDomainSteps(req.Steps),
		AutoStart: req.AutoStart,
	}
	if req.Condition != nil {
		spec.Condition = req.Condition.toDomain()
	}
	return spec
}

// ToPatch maps TourModify → device.TourPatch; nil steps mean unchanged.
func (req *TourModify) ToPatch() device.TourPatch {
	patch := device.TourPatch{Name: req.Name, AutoStart: req.AutoStart}
	if req.Steps != nil {
		patch.Steps = toDomainSteps(req.Steps)
	}
	if req.Condition != nil {
		c := req.Condition.toDomain()
		patch.Condition = &c
	}
	return patch
}

func FromTour(t ptz.Tour) Tour {
	out := Tour{
		Token:     t.Token,
		Name:      t.Name,
		Steps:     make([]TourStep, len(t.Steps)),
		AutoStart: t.AutoStart,
		Condition: StartingCondition{
			RandomOrder:    t.Condition.RandomOrder,
			RecurringGapMS: t.Condition.RecurringGap.Milliseconds(),
		},
	}
	for i, s := range t.Steps {
		out.Steps[i] = TourStep{PresetToken: s.PresetToken, Speed: s.Speed, DwellMS: s.Dwell.Milliseconds()}
	}
	return out
}

func FromTours(ts []ptz.Tour) []Tour {
	out := make([]Tour, len(ts))
	for i, t := range ts {
		out[i] = FromTour(t)
	}
	return out
}

func (c StartingCondition) toDomain() ptz.StartingCondition {
	return ptz.StartingCondition{
		RandomOrder:  c.RandomOrder,
		RecurringGap: time.Duration(c.RecurringGapMS) * time.Millisecond,
	}
}

func toDomainSteps(in []TourStep) []ptz.TourStep {
	out := make([]ptz.TourStep, len(in))
	for i, s := range in {
		out[i] = ptz.TourStep{
			PresetToken: s.PresetToken,
			Speed:       s.Speed,
			Dwell:       time.Duration(s.DwellMS) * time.Millisecond,
		}
	}
	return out
}
