package ptz

import "strings"

// TourState is the run state of a single tour.
type TourState string

const (
	TourIdle     TourState = "idle"     // no run yet
	TourRunning  TourState = "running"  //
	TourPaused   TourState = "paused"   //
	TourStopping TourState = "stopping" // cancellation requested, loop unwinding
	TourStopped  TourState = "stopped"  // run finished, a start creates a new one
)

type TourAction string

const (
	ActionStart  TourAction = "start"
	ActionStop   TourAction = "stop"
	ActionPause  TourAction = "pause"
	ActionResume TourAction = "resume"
)

// ParseTourAction accepts the action names case-insensitively.
func ParseTourAction(s string) (TourAction, error) {
	switch a := TourAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop, ActionPause, ActionResume:
		return a, nil
	}
	return "", InvalidArgument("tour.operate", "unknown action %q", s)
}

// Next returns the state reached by applying a to s.
//
// start on running/paused is a no-op and returns s unchanged with a nil error.
// start on stopping is accepted: the new run waits for the old loop to exit.
func (s TourState) Next(a TourAction) (TourState, error) {
	const op = "tour.operate"
	switch a {
	case ActionStart:
		switch s {
		case TourRunning, TourPaused:
			return s, nil
		case TourIdle, TourStopped, TourStopping:
			return TourRunning, nil
		}
	case ActionPause:
		if s == TourRunning {
			return TourPaused, nil
		}
	case ActionResume:
		if s == TourPaused {
			return TourRunning, nil
		}
	case ActionStop:
		if s == TourRunning || s == TourPaused {
			return TourStopping, nil
		}
	default:
		return s, InvalidArgument(op, "unknown action %q", a)
	}
	return s, InvalidTransition(op, "cannot %s a tour that is %s", a, s)
}
