package tourmgr

import "sync"

// MaxEventLog caps the per-tour event history.
const MaxEventLog = 500

// eventBuffer is a thread-safe circular buffer of events with O(1) append and O(N) read.
type eventBuffer struct {
	entries []Event      // fixed length, allocated once
	head    int          // next write position
	size    int          // current number of entries
	mu      sync.RWMutex // protects all fields
}

func newEventBuffer(capN int) *eventBuffer {
	if capN <= 0 || capN > MaxEventLog {
		capN = MaxEventLog
	}
	return &eventBuffer{entries: make([]Event, capN)}
}

// Append adds an event, overwriting the oldest when full.
func (b *eventBuffer) Append(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capN := len(b.entries)
	b.entries[b.head] = ev
	b.head = (b.head + 1) % capN
	if b.size < capN {
		b.size++
	}
}

// Read returns the last n events, newest → oldest. n <= 0 returns everything held.
// Returns a NEW slice (caller owns memory).
func (b *eventBuffer) Read(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []Event{}
	}
	if n <= 0 || n > b.size {
		n = b.size
	}

	capN := len(b.entries)
	newest := (b.head - 1 + capN) % capN

	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(newest-i+capN)%capN]
	}
	return out
}
