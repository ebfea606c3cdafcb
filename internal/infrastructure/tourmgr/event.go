package tourmgr

import (
	"time"
)

type EventType string

const (
	EventStarted    EventType = "started"
	EventStep       EventType = "step"
	EventStepFailed EventType = "step_failed"
	EventPass       EventType = "pass"
	EventPaused     EventType = "paused"
	EventResumed    EventType = "resumed"
	EventStopping   EventType = "stopping"
	EventStopped    EventType = "stopped"
	EventPanic      EventType = "panic"
)

// Event is one entry of a tour run's history.
type Event struct {
	Device  string    `json:"device"`
	Tour    string    `json:"tour"`
	RunID   string    `json:"run_id"`
	Type    EventType `json:"type"`
	Step    int       `json:"step"`
	Preset  string    `json:"preset,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives every event recorded by a Manager.
// Notify is called from the run goroutine and must not block.
type Notifier interface {
	Notify(Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
