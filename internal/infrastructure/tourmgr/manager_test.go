package tourmgr

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap/zaptest"
)

// ─── Mocks ──────────────────────────────────────────────────────────

type fakeTarget struct {
	mu      sync.Mutex
	tours   map[string]ptz.Tour
	presets map[string]ptz.Preset
	moves   []float64 // pan of every tour move
	moving  bool
	panicOn string        // preset token whose lookup panics
	hold    chan struct{} // when set, TourSettle blocks until it is closed
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		tours:   make(map[string]ptz.Tour),
		presets: make(map[string]ptz.Preset),
	}
}

func (f *fakeTarget) addPreset(token string, pan float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presets[token] = ptz.Preset{Token: token, Position: ptz.Vector{Pan: pan}}
}

func (f *fakeTarget) removePreset(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.presets, token)
}

func (f *fakeTarget) setTour(t ptz.Tour) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tours[t.Token] = t
}

func (f *fakeTarget) Tour(token string) (ptz.Tour, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[token]
	return t.Clone(), ok
}

func (f *fakeTarget) Preset(token string) (ptz.Preset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == f.panicOn {
		panic("preset lookup exploded")
	}
	p, ok := f.presets[token]
	return p, ok
}

func (f *fakeTarget) TourMove(pos ptz.Vector, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, pos.Pan)
	f.moving = true
}

func (f *fakeTarget) TourSettle() {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.moving = false
}

func (f *fakeTarget) getMoves() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.moves...)
}

func (f *fakeTarget) isMoving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moving
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count(typ EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

// ─── Helpers ────────────────────────────────────────────────────────

func setupManager(t *testing.T, target *fakeTarget, opts Options) *Manager {
	t.Helper()
	m := NewManager(zaptest.NewLogger(t), target, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.StopAll(ctx); err != nil {
			t.Errorf("StopAll() error = %v", err)
		}
	})
	return m
}

func twoStepTour(dwell time.Duration) ptz.Tour {
	return ptz.Tour{
		Token: "tour_1",
		Name:  "patrol",
		Steps: []ptz.TourStep{
			{PresetToken: "preset_1", Speed: 0.5, Dwell: dwell},
			{PresetToken: "preset_2", Speed: 0.5, Dwell: dwell},
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// isCyclic reports whether moves follow the order of pans, wrapping, with no skip or repeat.
func isCyclic(moves, pans []float64) bool {
	for i, m := range moves {
		if m != pans[i%len(pans)] {
			return false
		}
	}
	return true
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestTourVisitsStepsInOrderAndWraps(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(40 * time.Millisecond))
	m := setupManager(t, target, Options{})

	st, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatalf("Operate(start) error = %v", err)
	}
	if st.State != ptz.TourRunning {
		t.Fatalf("state = %q, want running", st.State)
	}

	waitFor(t, time.Second, "three moves", func() bool { return len(target.getMoves()) >= 3 })

	moves := target.getMoves()
	if !isCyclic(moves, []float64{0.1, 0.2}) {
		t.Fatalf("moves = %v, want alternating 0.1, 0.2 starting at 0.1", moves)
	}
	if got := m.Status("tour_1").Passes; got < 1 {
		t.Errorf("Passes = %d, want >= 1", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(50 * time.Millisecond))
	notifier := &recordingNotifier{}
	m := setupManager(t, target, Options{Notifier: notifier})

	first, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatalf("first start error = %v", err)
	}
	second, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatalf("second start error = %v", err)
	}
	if first.RunID != second.RunID {
		t.Fatalf("second start created a new run: %q != %q", first.RunID, second.RunID)
	}

	time.Sleep(220 * time.Millisecond)

	// One loop moves every 50ms (~5 moves); two loops would double that.
	if n := len(target.getMoves()); n > 7 {
		t.Fatalf("moves = %d after 220ms, step progression looks doubled", n)
	}
	if n := notifier.count(EventStarted); n != 1 {
		t.Errorf("started events = %d, want 1", n)
	}
	if !isCyclic(target.getMoves(), []float64{0.1, 0.2}) {
		t.Errorf("moves = %v are not a single cycle", target.getMoves())
	}
}

func TestPauseResumePreservesStepIndex(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.addPreset("preset_3", 0.3)
	target.setTour(ptz.Tour{
		Token: "tour_1",
		Steps: []ptz.TourStep{
			{PresetToken: "preset_1", Dwell: 30 * time.Millisecond},
			{PresetToken: "preset_2", Dwell: 30 * time.Millisecond},
			{PresetToken: "preset_3", Dwell: 30 * time.Millisecond},
		},
	})
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatalf("start error = %v", err)
	}
	waitFor(t, time.Second, "second move", func() bool { return len(target.getMoves()) >= 2 })

	st, err := m.Operate("tour_1", ptz.ActionPause)
	if err != nil {
		t.Fatalf("pause error = %v", err)
	}
	if st.State != ptz.TourPaused {
		t.Fatalf("state after pause = %q", st.State)
	}

	// Let any in-progress dwell boundary pass, then the loop must be parked.
	time.Sleep(60 * time.Millisecond)
	parked := len(target.getMoves())
	time.Sleep(100 * time.Millisecond)
	if n := len(target.getMoves()); n != parked {
		t.Fatalf("moves advanced while paused: %d -> %d", parked, n)
	}

	if _, err := m.Operate("tour_1", ptz.ActionPause); !errors.Is(err, ptz.ErrInvalidTransition) {
		t.Fatalf("second pause error = %v, want invalid transition", err)
	}

	st, err = m.Operate("tour_1", ptz.ActionResume)
	if err != nil || st.State != ptz.TourRunning {
		t.Fatalf("resume = %+v, %v", st, err)
	}
	waitFor(t, time.Second, "moves after resume", func() bool { return len(target.getMoves()) >= parked+3 })

	if moves := target.getMoves(); !isCyclic(moves, []float64{0.1, 0.2, 0.3}) {
		t.Fatalf("moves = %v, a step was skipped or repeated across pause/resume", moves)
	}
}

func TestStopFromPausedStops(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	m := setupManager(t, target, Options{SettleTime: time.Millisecond})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "first move", func() bool { return len(target.getMoves()) == 1 })
	if _, err := m.Operate("tour_1", ptz.ActionPause); err != nil {
		t.Fatal(err)
	}

	st, err := m.Operate("tour_1", ptz.ActionStop)
	if err != nil {
		t.Fatalf("stop from paused error = %v", err)
	}
	if st.State != ptz.TourStopping && st.State != ptz.TourStopped {
		t.Fatalf("state after stop = %q", st.State)
	}
	waitFor(t, time.Second, "stopped", func() bool { return m.Status("tour_1").State == ptz.TourStopped })

	if target.isMoving() {
		t.Error("device still moving after tour stopped")
	}
	if _, err := m.Operate("tour_1", ptz.ActionStop); !errors.Is(err, ptz.ErrInvalidTransition) {
		t.Errorf("stop on stopped error = %v, want invalid transition", err)
	}
}

func TestOperateRejections(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	m := setupManager(t, target, Options{})

	tests := []struct {
		name   string
		token  string
		action ptz.TourAction
		want   error
	}{
		{"unknown tour", "tour_9", ptz.ActionStart, ptz.ErrNotFound},
		{"stop idle", "tour_1", ptz.ActionStop, ptz.ErrInvalidTransition},
		{"pause idle", "tour_1", ptz.ActionPause, ptz.ErrInvalidTransition},
		{"resume idle", "tour_1", ptz.ActionResume, ptz.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Operate(tt.token, tt.action)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Operate(%q, %q) error = %v, want %v", tt.token, tt.action, err, tt.want)
			}
		})
	}
	if st := m.Status("tour_1"); st.State != ptz.TourIdle {
		t.Errorf("state after rejections = %q, want idle", st.State)
	}
}

func TestMissingPresetIsSkipped(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(20 * time.Millisecond))
	target.removePreset("preset_1")
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "two moves", func() bool { return len(target.getMoves()) >= 2 })

	for _, pan := range target.getMoves() {
		if pan != 0.2 {
			t.Fatalf("moves = %v, want only preset_2 (0.2)", target.getMoves())
		}
	}
	st := m.Status("tour_1")
	if st.State != ptz.TourRunning {
		t.Errorf("state = %q, want running", st.State)
	}
	if st.Failures < 1 || !strings.Contains(st.LastError, "preset_1") {
		t.Errorf("status = %+v, want a recorded failure for preset_1", st)
	}
}

func TestAllStepsMissingBacksOff(t *testing.T) {
	target := newFakeTarget()
	target.setTour(twoStepTour(10 * time.Millisecond))
	m := setupManager(t, target, Options{IdleBackoff: 50 * time.Millisecond})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)

	// Two failures per pass with a 50ms backoff between passes.
	if got := m.Status("tour_1").Failures; got > 8 {
		t.Fatalf("Failures = %d in 120ms, loop is spinning", got)
	}
	if _, err := m.Operate("tour_1", ptz.ActionStop); err != nil {
		t.Fatal(err)
	}
}

func TestModificationAppliesAtNextPass(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.addPreset("preset_3", 0.3)
	target.setTour(twoStepTour(20 * time.Millisecond))
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "first move", func() bool { return len(target.getMoves()) >= 1 })

	target.setTour(ptz.Tour{
		Token: "tour_1",
		Steps: []ptz.TourStep{{PresetToken: "preset_3", Dwell: 20 * time.Millisecond}},
	})
	waitFor(t, time.Second, "move to preset_3", func() bool {
		moves := target.getMoves()
		return moves[len(moves)-1] == 0.3
	})

	// The pass in flight when the tour changed must have completed.
	moves := target.getMoves()
	first3 := -1
	for i, pan := range moves {
		if pan == 0.3 {
			first3 = i
			break
		}
	}
	if first3 < 2 || !isCyclic(moves[:first3], []float64{0.1, 0.2}) {
		t.Fatalf("moves = %v, modification cut the running pass short", moves)
	}
}

func TestPanicIsolatedToRun(t *testing.T) {
	bad := newFakeTarget()
	bad.addPreset("preset_1", 0.1)
	bad.addPreset("preset_2", 0.2)
	bad.setTour(twoStepTour(10 * time.Millisecond))
	bad.panicOn = "preset_2"

	good := newFakeTarget()
	good.addPreset("preset_1", 0.1)
	good.addPreset("preset_2", 0.2)
	good.setTour(twoStepTour(10 * time.Millisecond))

	mBad := setupManager(t, bad, Options{Device: "bad"})
	mGood := setupManager(t, good, Options{Device: "good"})

	if _, err := mGood.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	if _, err := mBad.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, "bad run stopped", func() bool { return mBad.Status("tour_1").State == ptz.TourStopped })
	if st := mBad.Status("tour_1"); !strings.Contains(st.LastError, "panic") {
		t.Errorf("LastError = %q, want panic", st.LastError)
	}
	if bad.isMoving() {
		t.Error("panicked run left device moving")
	}

	before := len(good.getMoves())
	waitFor(t, time.Second, "good run progress", func() bool { return len(good.getMoves()) > before+2 })
	if st := mGood.Status("tour_1"); st.State != ptz.TourRunning {
		t.Errorf("good tour state = %q, want running", st.State)
	}
}

func TestRestartWhileStopping(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(20 * time.Millisecond))
	m := setupManager(t, target, Options{})

	first, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Operate("tour_1", ptz.ActionStop); err != nil {
		t.Fatal(err)
	}
	second, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatal(err)
	}
	if second.RunID == first.RunID {
		t.Fatal("start after stop reused the old run")
	}
	if second.State != ptz.TourRunning {
		t.Fatalf("state = %q, want running", second.State)
	}

	before := len(target.getMoves())
	waitFor(t, time.Second, "new run progress", func() bool { return len(target.getMoves()) >= before+2 })
	if st := m.Status("tour_1"); st.RunID != second.RunID {
		t.Errorf("status run = %q, want %q", st.RunID, second.RunID)
	}
}

func TestTourRemovedEndsRun(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(10 * time.Millisecond))
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	target.mu.Lock()
	delete(target.tours, "tour_1")
	target.mu.Unlock()

	waitFor(t, time.Second, "run stopped", func() bool { return m.Status("tour_1").State == ptz.TourStopped })
	if st := m.Status("tour_1"); st.LastError != "tour removed" {
		t.Errorf("LastError = %q, want tour removed", st.LastError)
	}
}

func TestForgetDropsRecord(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	if len(m.Events("tour_1", 0)) == 0 {
		t.Fatal("no events recorded for started tour")
	}

	m.Forget("tour_1")
	m.Forget("tour_1")

	if st := m.Status("tour_1"); st.State != ptz.TourIdle {
		t.Errorf("state after Forget = %q, want idle", st.State)
	}
	if evs := m.Events("tour_1", 0); len(evs) != 0 {
		t.Errorf("events after Forget = %d, want 0", len(evs))
	}
}

func TestStartAfterForgetWaitsForOldLoop(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	m := setupManager(t, target, Options{})

	first, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "first move", func() bool { return len(target.getMoves()) == 1 })

	hold := make(chan struct{})
	target.mu.Lock()
	target.hold = hold
	target.mu.Unlock()

	m.Forget("tour_1")
	second, err := m.Operate("tour_1", ptz.ActionStart)
	if err != nil {
		t.Fatal(err)
	}
	if second.RunID == first.RunID {
		t.Fatal("start after Forget reused the old run")
	}

	time.Sleep(30 * time.Millisecond)
	if n := len(target.getMoves()); n != 1 {
		t.Fatalf("moves while old loop still settling = %d, want 1", n)
	}

	close(hold)
	waitFor(t, time.Second, "new run move", func() bool { return len(target.getMoves()) == 2 })

	for _, ev := range m.Events("tour_1", 0) {
		if ev.RunID != second.RunID {
			t.Errorf("history holds %s event of run %q, want only run %q", ev.Type, ev.RunID, second.RunID)
		}
	}
	if st := m.Status("tour_1"); st.State != ptz.TourRunning || st.RunID != second.RunID {
		t.Errorf("status = %+v, want running run %q", st, second.RunID)
	}

	m.mu.Lock()
	_, exiting := m.exiting["tour_1"]
	m.mu.Unlock()
	if exiting {
		t.Error("old loop still marked as exiting after it finished")
	}
}

func TestStartAfterStopAllRejected(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	m := NewManager(zaptest.NewLogger(t), target, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}

	st, err := m.Operate("tour_1", ptz.ActionStart)
	if !errors.Is(err, ptz.ErrInvalidTransition) {
		t.Fatalf("start after StopAll error = %v, want invalid transition", err)
	}
	if st.State != ptz.TourIdle {
		t.Errorf("state = %q, want idle", st.State)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(target.getMoves()); n != 0 {
		t.Errorf("moves after StopAll = %d, want 0", n)
	}
}

func TestStopAllWaitsForLoops(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.addPreset("preset_2", 0.2)
	target.setTour(twoStepTour(time.Hour))
	target.setTour(ptz.Tour{Token: "tour_2", Steps: []ptz.TourStep{{PresetToken: "preset_1", Dwell: time.Hour}}})
	m := NewManager(zaptest.NewLogger(t), target, Options{})

	for _, token := range []string{"tour_1", "tour_2"} {
		if _, err := m.Operate(token, ptz.ActionStart); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	for token, state := range m.States() {
		if state != ptz.TourStopped {
			t.Errorf("%s state = %q, want stopped", token, state)
		}
	}
}

func TestEventBufferWraps(t *testing.T) {
	b := newEventBuffer(3)
	for i := 0; i < 5; i++ {
		b.Append(Event{Step: i})
	}
	got := b.Read(0)
	if len(got) != 3 {
		t.Fatalf("Read(0) len = %d, want 3", len(got))
	}
	for i, want := range []int{4, 3, 2} {
		if got[i].Step != want {
			t.Errorf("Read(0)[%d].Step = %d, want %d", i, got[i].Step, want)
		}
	}
	if got := b.Read(1); len(got) != 1 || got[0].Step != 4 {
		t.Errorf("Read(1) = %+v", got)
	}
	if got := newEventBuffer(0).Read(5); len(got) != 0 {
		t.Errorf("empty Read = %+v", got)
	}
}

func TestRandomOrderVisitsEveryStepPerPass(t *testing.T) {
	target := newFakeTarget()
	tour := ptz.Tour{Token: "tour_1", Condition: ptz.StartingCondition{RandomOrder: true}}
	for i, pan := range []float64{0.1, 0.2, 0.3} {
		token := "preset_" + string(rune('a'+i))
		target.addPreset(token, pan)
		tour.Steps = append(tour.Steps, ptz.TourStep{PresetToken: token, Dwell: 5 * time.Millisecond})
	}
	target.setTour(tour)
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "two passes", func() bool { return len(target.getMoves()) >= 6 })

	moves := target.getMoves()
	for pass := 0; pass < 2; pass++ {
		seen := map[float64]bool{}
		for _, pan := range moves[pass*3 : pass*3+3] {
			seen[pan] = true
		}
		if len(seen) != 3 {
			t.Errorf("pass %d moves = %v, want each preset once", pass, moves[pass*3:pass*3+3])
		}
	}
}

func TestRecurringGapBetweenPasses(t *testing.T) {
	target := newFakeTarget()
	target.addPreset("preset_1", 0.1)
	target.setTour(ptz.Tour{
		Token:     "tour_1",
		Steps:     []ptz.TourStep{{PresetToken: "preset_1", Dwell: 5 * time.Millisecond}},
		Condition: ptz.StartingCondition{RecurringGap: 100 * time.Millisecond},
	})
	m := setupManager(t, target, Options{})

	if _, err := m.Operate("tour_1", ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "first move", func() bool { return len(target.getMoves()) >= 1 })

	time.Sleep(50 * time.Millisecond)
	if got := len(target.getMoves()); got != 1 {
		t.Fatalf("moves = %d during the gap, want 1", got)
	}
	waitFor(t, time.Second, "second pass", func() bool { return len(target.getMoves()) >= 2 })
}
