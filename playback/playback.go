// Package playback drives the animated replay of one runner's test: a virtual
// clock advanced by a wall-clock ticker that pauses itself on threshold and
// phase markers until the viewer acknowledges them.
package playback

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pacelab/models"
)

type Status int

const (
	Stopped Status = iota
	Playing
	Paused
	ThresholdPaused
)

func (s Status) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case ThresholdPaused:
		return "threshold_paused"
	}
	return "stopped"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{Stopped, Playing, Paused, ThresholdPaused} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown playback status %q", b)
}

// Marker is a virtual time at which playback pauses once to show a message.
type Marker struct {
	ID      string  `json:"id"`
	Time    float64 `json:"time"`
	Message string  `json:"message"`
}

// State is a snapshot of the controller.
type State struct {
	StepIndex          int      `json:"step_index"`
	CurrentVirtualTime float64  `json:"current_virtual_time"`
	Status             Status   `json:"status"`
	CrossedThresholds  []string `json:"crossed_thresholds"`
	TotalDuration      float64  `json:"total_duration"`
}

type Config struct {
	TickInterval time.Duration
	SpeedFactor  float64
	Markers      []Marker
	// NewTicker is swapped out in tests; nil uses time.NewTicker.
	NewTicker func(time.Duration) Ticker
}

func DefaultConfig() Config {
	return Config{
		TickInterval: 10 * time.Millisecond,
		SpeedFactor:  10,
	}
}

// Ticker is the part of *time.Ticker the controller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Controller owns the playback state of one visualization. All methods are
// safe for concurrent use; ticks never overlap and none is processed after
// Pause, Reset or a threshold stop returns.
type Controller struct {
	cfg     Config
	markers []Marker

	// emitMu serializes transitions together with their event delivery so
	// listeners observe events in transition order.
	emitMu sync.Mutex

	mu       sync.Mutex
	samples  []models.Sample
	index    []float64
	total    float64
	step     int
	vt       float64
	status   Status
	crossed  map[string]bool
	order    []string
	gen      uint64
	stopTick chan struct{}

	bus bus
}

func NewController(cfg Config, samples []models.Sample) (*Controller, error) {
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %v", cfg.TickInterval)
	}
	if cfg.SpeedFactor <= 0 {
		return nil, fmt.Errorf("speed factor must be positive, got %v", cfg.SpeedFactor)
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = newTimeTicker
	}

	markers := make([]Marker, len(cfg.Markers))
	copy(markers, cfg.Markers)
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Time < markers[j].Time })

	c := &Controller{
		cfg:     cfg,
		markers: markers,
		crossed: make(map[string]bool),
	}
	c.SetSamples(samples)
	return c, nil
}

// SetSamples swaps the backing dataset and resets playback.
func (c *Controller) SetSamples(samples []models.Sample) {
	sorted := make([]models.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	index := make([]float64, len(sorted))
	var total float64
	for i, s := range sorted {
		index[i] = s.Time
		total = max(total, s.Time)
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	c.samples, c.index, c.total = sorted, index, total
	events := c.resetLocked()
	c.mu.Unlock()
	c.bus.emit(events...)
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners run synchronously and must not call back into the Controller.
func (c *Controller) Subscribe(l Listener) func() {
	return c.bus.subscribe(l)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	crossed := make([]string, len(c.order))
	copy(crossed, c.order)
	return State{
		StepIndex:          c.step,
		CurrentVirtualTime: c.vt,
		Status:             c.status,
		CrossedThresholds:  crossed,
		TotalDuration:      c.total,
	}
}

// VirtualTime maps a step to seconds of test time.
func (c *Controller) VirtualTime(step int) float64 {
	return float64(time.Duration(step)*c.cfg.TickInterval) / float64(time.Second) * c.cfg.SpeedFactor
}

// Start begins playback from Stopped, or resumes from Paused. Starting a run
// that already reached the end rewinds it first.
func (c *Controller) Start() error {
	return c.start(false)
}

func (c *Controller) start(resumeOnly bool) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()

	if len(c.samples) == 0 {
		c.mu.Unlock()
		return models.ErrDataNotReady
	}
	if resumeOnly && c.status != Paused {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("cannot resume from %s", status)
	}

	var events []Event
	switch c.status {
	case Playing, ThresholdPaused:
		c.mu.Unlock()
		return nil
	case Stopped:
		if c.vt >= c.total && c.step > 0 {
			events = append(events, c.resetLocked()...)
		}
	}
	events = append(events, c.transitionLocked(Playing))
	c.startTimerLocked()
	c.mu.Unlock()

	c.bus.emit(events...)
	return nil
}

// Pause stops ticking without touching the virtual clock.
func (c *Controller) Pause() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.status != Playing {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	ev := c.transitionLocked(Paused)
	c.mu.Unlock()
	c.bus.emit(ev)
}

// Resume continues a paused run.
func (c *Controller) Resume() error {
	return c.start(true)
}

// Acknowledge resumes after a threshold pause from the same step.
func (c *Controller) Acknowledge() error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.status != ThresholdPaused {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("nothing to acknowledge while %s", status)
	}
	ev := c.transitionLocked(Playing)
	c.startTimerLocked()
	c.mu.Unlock()
	c.bus.emit(ev)
	return nil
}

// Reset returns to Stopped at step zero with no crossed markers. It does not restart.
func (c *Controller) Reset() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	events := c.resetLocked()
	c.mu.Unlock()
	c.bus.emit(events...)
}

func (c *Controller) resetLocked() []Event {
	c.stopTimerLocked()
	c.step, c.vt = 0, 0
	c.crossed = make(map[string]bool)
	c.order = nil
	ev := c.transitionLocked(Stopped)
	ev.Kind = EventReset
	return []Event{ev}
}

// Tick performs one step of playback. It is what the timer calls and does
// nothing unless the controller is Playing.
func (c *Controller) Tick() {
	c.tick(0, false)
}

func (c *Controller) tick(gen uint64, fromTimer bool) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.status != Playing || (fromTimer && gen != c.gen) {
		c.mu.Unlock()
		return
	}
	events := c.tickLocked()
	c.mu.Unlock()
	c.bus.emit(events...)
}

func (c *Controller) tickLocked() []Event {
	c.vt = c.VirtualTime(c.step)
	events := []Event{{
		Kind:   EventTick,
		Time:   c.vt,
		Step:   c.step,
		Status: c.status,
		Sample: c.sampleAtLocked(c.vt),
	}}

	// Earliest uncrossed marker only, so a large jump still shows every message in order.
	for _, m := range c.markers {
		if c.crossed[m.ID] || c.vt < m.Time {
			continue
		}
		c.crossed[m.ID] = true
		c.order = append(c.order, m.ID)
		c.stopTimerLocked()
		ev := c.transitionLocked(ThresholdPaused)
		ev.Kind = EventThresholdCrossed
		ev.Marker = &m
		return append(events, ev)
	}

	if c.vt >= c.total {
		c.stopTimerLocked()
		ev := c.transitionLocked(Stopped)
		ev.Kind = EventFinished
		return append(events, ev)
	}

	c.step++
	return events
}

// sampleAtLocked returns the latest sample at or before t.
func (c *Controller) sampleAtLocked(t float64) *models.Sample {
	i := sort.Search(len(c.index), func(i int) bool { return c.index[i] > t })
	if i == 0 {
		return nil
	}
	s := c.samples[i-1]
	return &s
}

func (c *Controller) transitionLocked(to Status) Event {
	from := c.status
	c.status = to
	return Event{Kind: EventStateChanged, Time: c.vt, Step: c.step, Status: to, Previous: from}
}

func (c *Controller) startTimerLocked() {
	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.stopTick = stop
	t := c.cfg.NewTicker(c.cfg.TickInterval)

	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				c.tick(gen, true)
			}
		}
	}()
}

// stopTimerLocked cancels the running ticker. Bumping gen makes any tick that
// is already waiting on the lock a no-op.
func (c *Controller) stopTimerLocked() {
	if c.stopTick == nil {
		return
	}
	close(c.stopTick)
	c.stopTick = nil
	c.gen++
}

// Close stops the timer goroutine.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
}
