package ptz

import (
	"strings"
	"time"
)

type Preset struct {
	Token    string `json:"token"`    //
	Name     string `json:"name"`     //
	Position Vector `json:"position"` // captured pan/tilt/zoom
}

type TourStep struct {
	PresetToken string        `json:"preset_token"` // must exist at create/modify time
	Speed       float64       `json:"speed"`        // [0, 1], 0 = device default
	Dwell       time.Duration `json:"dwell"`        // time spent at the preset
}

// StartingCondition tunes how a tour loops.
type StartingCondition struct {
	RandomOrder  bool          `json:"random_order"`  // shuffle steps every pass
	RecurringGap time.Duration `json:"recurring_gap"` // pause between passes
}

type Tour struct {
	Token     string            `json:"token"`      //
	Name      string            `json:"name"`       //
	Steps     []TourStep        `json:"steps"`      // ordered, non-empty
	AutoStart bool              `json:"auto_start"` // start on create
	Condition StartingCondition `json:"starting_condition"`
}

// Clone returns a deep copy safe to hand out of a locked section.
func (t Tour) Clone() Tour {
	t.Steps = append([]TourStep(nil), t.Steps...)
	return t
}

// ValidateSteps checks step shape only. Reference checks need the preset collection.
func ValidateSteps(op string, steps []TourStep) error {
	if len(steps) == 0 {
		return InvalidArgument(op, "tour must have at least one step")
	}
	for i, s := range steps {
		if strings.TrimSpace(s.PresetToken) == "" {
			return InvalidArgument(op, "step %d: preset token required", i)
		}
		if err := ValidateSpeed(op, s.Speed); err != nil {
			return InvalidArgument(op, "step %d: speed %v out of range [0, 1]", i, s.Speed)
		}
		if s.Dwell < 0 {
			return InvalidArgument(op, "step %d: negative dwell", i)
		}
	}
	return nil
}

// TourStatus is a point-in-time view of a tour's run.
type TourStatus struct {
	Token     string    `json:"token"`
	State     TourState `json:"state"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step"`       // index into the current pass order
	Passes    int       `json:"passes"`     // completed passes
	Failures  int       `json:"failures"`   // failed steps over the run
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

type DeviceInfo struct {
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	SerialNumber    string `json:"serial_number"`
	HardwareID      string `json:"hardware_id"`
}

type Capabilities struct {
	PTZ        bool `json:"ptz"`
	Imaging    bool `json:"imaging"`
	Media      bool `json:"media"`
	Events     bool `json:"events"`
	PresetTour bool `json:"preset_tour"`
}

type Profile struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

type StreamURI struct {
	URI     string `json:"uri"`
	Timeout string `json:"timeout"` // ISO 8601 duration
}

// DeviceStatus is the PTZ status snapshot.
type DeviceStatus struct {
	Position Vector      `json:"position"`
	Motion   MotionState `json:"motion"`
	Velocity Vector      `json:"velocity"`
}
