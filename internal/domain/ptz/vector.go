package ptz

import "math"

// Normalized coordinate ranges.
const (
	PanMin, PanMax   = -1.0, 1.0
	TiltMin, TiltMax = -1.0, 1.0
	ZoomMin, ZoomMax = 0.0, 1.0
)

// Vector is a pan/tilt/zoom triple. Used for positions, deltas and velocities.
type Vector struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}

type MotionState string

const (
	MotionIdle   MotionState = "idle"
	MotionMoving MotionState = "moving"
)

// ValidatePosition rejects coordinates outside the normalized ranges.
func ValidatePosition(op string, p Vector) error {
	switch {
	case !inRange(p.Pan, PanMin, PanMax):
		return InvalidArgument(op, "pan %v out of range [%v, %v]", p.Pan, PanMin, PanMax)
	case !inRange(p.Tilt, TiltMin, TiltMax):
		return InvalidArgument(op, "tilt %v out of range [%v, %v]", p.Tilt, TiltMin, TiltMax)
	case !inRange(p.Zoom, ZoomMin, ZoomMax):
		return InvalidArgument(op, "zoom %v out of range [%v, %v]", p.Zoom, ZoomMin, ZoomMax)
	}
	return nil
}

// ValidateVelocity accepts any component in [-1, 1]. Zoom velocity may be negative (zoom out).
func ValidateVelocity(op string, v Vector) error {
	for _, c := range [...]float64{v.Pan, v.Tilt, v.Zoom} {
		if !inRange(c, -1, 1) {
			return InvalidArgument(op, "velocity %+v out of range [-1, 1]", v)
		}
	}
	return nil
}

// ValidateFinite rejects NaN and infinities, used for relative deltas.
func ValidateFinite(op string, v Vector) error {
	for _, c := range [...]float64{v.Pan, v.Tilt, v.Zoom} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return InvalidArgument(op, "non-finite component in %+v", v)
		}
	}
	return nil
}

// ValidateSpeed accepts speeds in [0, 1]. Zero means device default.
func ValidateSpeed(op string, speed float64) error {
	if !inRange(speed, 0, 1) {
		return InvalidArgument(op, "speed %v out of range [0, 1]", speed)
	}
	return nil
}

// Clamp pins every component into its normalized range.
func (v Vector) Clamp() Vector {
	return Vector{
		Pan:  clamp(v.Pan, PanMin, PanMax),
		Tilt: clamp(v.Tilt, TiltMin, TiltMax),
		Zoom: clamp(v.Zoom, ZoomMin, ZoomMax),
	}
}

func (v Vector) Add(d Vector) Vector {
	return Vector{Pan: v.Pan + d.Pan, Tilt: v.Tilt + d.Tilt, Zoom: v.Zoom + d.Zoom}
}

func inRange(x, lo, hi float64) bool {
	return !math.IsNaN(x) && x >= lo && x <= hi
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
