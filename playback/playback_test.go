package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pacelab/models"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (tf *tickerFactory) new(time.Duration) Ticker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	tf.tickers = append(tf.tickers, t)
	return t
}

func (tf *tickerFactory) last() *fakeTicker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.tickers[len(tf.tickers)-1]
}

func runSamples(seconds int) []models.Sample {
	samples := make([]models.Sample, 0, seconds+1)
	for i := seconds; i >= 0; i-- {
		samples = append(samples, models.Sample{SubjectID: "1_1", Time: float64(i), HR: float64(100 + i)})
	}
	return samples
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, samples []models.Sample, markers ...Marker) (*Controller, *tickerFactory, *recorder) {
	t.Helper()
	tf := &tickerFactory{}
	c, err := NewController(Config{
		TickInterval: 10 * time.Millisecond,
		SpeedFactor:  10,
		Markers:      markers,
		NewTicker:    tf.new,
	}, samples)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(c.Close)
	rec := &recorder{}
	c.Subscribe(rec.listen)
	return c, tf, rec
}

func TestThresholdPausesOnceAndAcknowledgeKeepsStep(t *testing.T) {
	c, _, rec := newTestController(t, runSamples(100), Marker{ID: "vt1", Time: 50})

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 600; i++ {
		c.Tick()
	}

	st := c.State()
	if st.Status != ThresholdPaused {
		t.Fatalf("expected ThresholdPaused, got %s", st.Status)
	}
	if st.StepIndex != 500 || st.CurrentVirtualTime != 50 {
		t.Fatalf("expected pause at step 500 / 50s, got step %d / %v", st.StepIndex, st.CurrentVirtualTime)
	}
	if rec.count(EventThresholdCrossed) != 1 {
		t.Fatalf("expected one threshold event, got %d", rec.count(EventThresholdCrossed))
	}

	if err := c.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if got := c.State(); got.Status != Playing || got.StepIndex != 500 {
		t.Fatalf("expected Playing at step 500 after acknowledge, got %+v", got)
	}

	for i := 0; i < 1000 && c.State().Status == Playing; i++ {
		c.Tick()
	}
	if got := c.State(); got.Status != Stopped || got.CurrentVirtualTime < 100 {
		t.Errorf("expected run to finish, got %+v", got)
	}
	if rec.count(EventThresholdCrossed) != 1 {
		t.Errorf("threshold fired again: %d events", rec.count(EventThresholdCrossed))
	}
	if rec.count(EventFinished) != 1 {
		t.Errorf("expected one finished event, got %d", rec.count(EventFinished))
	}
}

func TestVirtualTimeIsMonotonic(t *testing.T) {
	c, _, rec := newTestController(t, runSamples(20), PhaseMarkers(5, 12)...)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 1000; i++ {
		switch c.State().Status {
		case ThresholdPaused:
			if err := c.Acknowledge(); err != nil {
				t.Fatalf("Acknowledge failed: %v", err)
			}
		case Playing:
			c.Tick()
		}
	}

	last := -1.0
	for _, ev := range rec.events {
		if ev.Kind != EventTick {
			continue
		}
		if ev.Time < last {
			t.Fatalf("virtual time went backwards: %v after %v", ev.Time, last)
		}
		last = ev.Time
		if ev.Sample != nil && ev.Sample.Time > ev.Time {
			t.Fatalf("sample at %v is ahead of virtual time %v", ev.Sample.Time, ev.Time)
		}
	}
	if c.State().Status != Stopped {
		t.Errorf("expected the run to finish, got %s", c.State().Status)
	}
}

func TestMarkersFireInOrderOnLargeJumps(t *testing.T) {
	tf := &tickerFactory{}
	c, err := NewController(Config{
		TickInterval: time.Second,
		SpeedFactor:  100,
		Markers:      PhaseMarkers(40, 70),
		NewTicker:    tf.new,
	}, runSamples(300))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	defer c.Close()

	var fired []string
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventThresholdCrossed {
			fired = append(fired, ev.Marker.ID)
		}
	})

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		if c.State().Status == ThresholdPaused {
			c.Acknowledge()
			continue
		}
		c.Tick()
	}

	want := []string{MarkerPhase1, MarkerVT1, MarkerPhase2, MarkerVT2, MarkerPhase3}
	if len(fired) != len(want) {
		t.Fatalf("expected %v, got %v", want, fired)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("marker %d: got %s, want %s", i, fired[i], want[i])
		}
	}
}

func TestStartWithoutDataFails(t *testing.T) {
	c, _, _ := newTestController(t, nil)

	if err := c.Start(); !errors.Is(err, models.ErrDataNotReady) {
		t.Fatalf("expected ErrDataNotReady, got %v", err)
	}
	if c.State().Status != Stopped {
		t.Errorf("playback must not begin, got %s", c.State().Status)
	}
}

func TestResetClearsState(t *testing.T) {
	c, _, rec := newTestController(t, runSamples(100), Marker{ID: "vt1", Time: 1})

	c.Start()
	for i := 0; i < 20; i++ {
		c.Tick()
	}
	if c.State().Status != ThresholdPaused {
		t.Fatalf("expected ThresholdPaused, got %s", c.State().Status)
	}

	c.Reset()
	st := c.State()
	if st.Status != Stopped || st.StepIndex != 0 || st.CurrentVirtualTime != 0 || len(st.CrossedThresholds) != 0 {
		t.Fatalf("expected a cleared stopped state, got %+v", st)
	}

	c.Start()
	for i := 0; i < 20; i++ {
		c.Tick()
	}
	if rec.count(EventThresholdCrossed) != 2 {
		t.Errorf("expected the marker to fire again after reset, got %d", rec.count(EventThresholdCrossed))
	}
}

func TestPauseResume(t *testing.T) {
	c, tf, _ := newTestController(t, runSamples(100))

	c.Start()
	c.Tick()
	c.Tick()
	c.Pause()

	st := c.State()
	if st.Status != Paused || st.StepIndex != 2 {
		t.Fatalf("expected Paused at step 2, got %+v", st)
	}

	// A tick already queued on the cancelled timer is dropped.
	select {
	case tf.last().ch <- time.Now():
	default:
	}
	c.Tick()
	time.Sleep(20 * time.Millisecond)
	if got := c.State().StepIndex; got != 2 {
		t.Fatalf("tick processed while paused, step %d", got)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	c.Tick()
	if got := c.State(); got.Status != Playing || got.StepIndex != 3 {
		t.Errorf("expected Playing at step 3, got %+v", got)
	}
	if err := c.Resume(); err == nil {
		t.Error("expected error resuming while playing")
	}
	if err := c.Acknowledge(); err == nil {
		t.Error("expected error acknowledging without a threshold pause")
	}
}

func TestResumeAfterResetStaysStopped(t *testing.T) {
	c, _, _ := newTestController(t, runSamples(100))

	c.Start()
	c.Tick()
	c.Pause()
	c.Reset()
	if err := c.Resume(); err == nil {
		t.Fatal("expected error resuming a reset run")
	}
	if st := c.State(); st.Status != Stopped || st.StepIndex != 0 {
		t.Fatalf("expected Stopped at step 0, got %+v", st)
	}

	// Whichever of Reset and Resume lands first, the run ends stopped.
	for i := 0; i < 200; i++ {
		c.Start()
		c.Pause()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.Reset() }()
		go func() { defer wg.Done(); _ = c.Resume() }()
		wg.Wait()
		if st := c.State().Status; st != Stopped {
			t.Fatalf("iteration %d: expected Stopped, got %s", i, st)
		}
	}
}

func TestStartAfterFinishRewinds(t *testing.T) {
	c, _, _ := newTestController(t, runSamples(1))

	c.Start()
	for i := 0; i < 20; i++ {
		c.Tick()
	}
	if st := c.State(); st.Status != Stopped || st.StepIndex != 10 {
		t.Fatalf("expected finished at step 10, got %+v", st)
	}

	c.Start()
	if st := c.State(); st.Status != Playing || st.StepIndex != 0 {
		t.Errorf("expected rewind on start, got %+v", st)
	}
}

func TestTimerDrivesPlayback(t *testing.T) {
	c, err := NewController(Config{TickInterval: time.Millisecond, SpeedFactor: 1000}, runSamples(5))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	var once sync.Once
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventFinished {
			once.Do(func() { close(done) })
		}
	})

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("playback did not finish, state %+v", c.State())
	}
	if st := c.State(); st.Status != Stopped || st.CurrentVirtualTime != 5 {
		t.Errorf("unexpected final state %+v", st)
	}
}

func TestNewControllerValidatesConfig(t *testing.T) {
	if _, err := NewController(Config{SpeedFactor: 1}, nil); err == nil {
		t.Error("expected error for zero tick interval")
	}
	if _, err := NewController(Config{TickInterval: time.Millisecond}, nil); err == nil {
		t.Error("expected error for zero speed factor")
	}
}
