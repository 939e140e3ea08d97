package playback

import (
	"slices"
	"sync"

	"github.com/pacelab/models"
)

type EventKind string

const (
	EventTick             EventKind = "tick"
	EventThresholdCrossed EventKind = "threshold_crossed"
	EventStateChanged     EventKind = "state_changed"
	EventFinished         EventKind = "finished"
	EventReset            EventKind = "reset"
)

// Event is published for every tick and transition. Status is the state
// after the event; Previous is set on transitions.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Time     float64        `json:"time"`
	Step     int            `json:"step"`
	Status   Status         `json:"status"`
	Previous Status         `json:"previous"`
	Sample   *models.Sample `json:"sample,omitempty"`
	Marker   *Marker        `json:"marker,omitempty"`
}

type Listener func(Event)

type bus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func (b *bus) subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *bus) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = b.listeners[id]
	}
	b.mu.RUnlock()

	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}
