package analysis

import (
	"math"
	"testing"

	"github.com/pacelab/models"
)

func TestNearestEmpty(t *testing.T) {
	if _, ok := Nearest(nil, 3); ok {
		t.Error("expected no point for empty input")
	}
	if _, ok := NewNearestIndex(nil).Nearest(3); ok {
		t.Error("expected no point for empty index")
	}
}

func TestNearestTieGoesToEarlierTime(t *testing.T) {
	points := []models.TimeValue{{Time: 20, Value: 2}, {Time: 10, Value: 1}, {Time: 30, Value: 3}}

	p, ok := Nearest(points, 15)
	if !ok || p.Time != 10 {
		t.Errorf("expected t=10 on a tie, got %+v", p)
	}

	p, ok = NewNearestIndex(points).Nearest(15)
	if !ok || p.Time != 10 {
		t.Errorf("index: expected t=10 on a tie, got %+v", p)
	}
}

func TestNearestIndexAgreesWithScan(t *testing.T) {
	var points []models.TimeValue
	for i := 0; i < 30; i++ {
		points = append(points, models.TimeValue{Time: float64((i * 7) % 31), Value: float64(i)})
	}
	idx := NewNearestIndex(points)

	for q := -5.0; q <= 40; q += 0.25 {
		want, _ := Nearest(points, q)
		got, ok := idx.Nearest(q)
		if !ok {
			t.Fatalf("no point for %v", q)
		}
		if math.Abs(got.Time-q) != math.Abs(want.Time-q) || got.Time != want.Time {
			t.Errorf("query %v: index %+v, scan %+v", q, got, want)
		}
		for _, p := range points {
			if math.Abs(p.Time-q) < math.Abs(got.Time-q) {
				t.Fatalf("query %v: %+v is closer than %+v", q, p, got)
			}
		}
	}
}

func TestAtOrBefore(t *testing.T) {
	idx := NewNearestIndex([]models.TimeValue{{Time: 0}, {Time: 5}, {Time: 10}})

	if _, ok := idx.AtOrBefore(-1); ok {
		t.Error("expected nothing before the first point")
	}
	if p, _ := idx.AtOrBefore(7); p.Time != 5 {
		t.Errorf("expected t=5, got %v", p.Time)
	}
	if p, _ := idx.AtOrBefore(10); p.Time != 10 {
		t.Errorf("expected t=10, got %v", p.Time)
	}
}

func TestLinearScaleRoundTrip(t *testing.T) {
	s := ScaleFor([]models.TimeValue{{Time: 100}, {Time: 600}}, 500)

	if got := s.Apply(350); got != 250 {
		t.Errorf("Apply(350) = %v, want 250", got)
	}
	if got := s.Invert(250); got != 350 {
		t.Errorf("Invert(250) = %v, want 350", got)
	}
}

func TestFocusLockToggle(t *testing.T) {
	idx := NewNearestIndex([]models.TimeValue{{Time: 0, Value: 1}, {Time: 10, Value: 2}})
	var lock FocusLock

	p, locked := lock.Toggle(idx, 8)
	if !locked || p.Time != 10 {
		t.Fatalf("expected lock on t=10, got %+v %v", p, locked)
	}
	if got, ok := lock.Locked(); !ok || got.Value != 2 {
		t.Errorf("expected locked point value 2, got %+v", got)
	}

	if _, locked := lock.Toggle(idx, 1); locked {
		t.Error("second toggle should unlock")
	}
	if _, ok := lock.Locked(); ok {
		t.Error("expected unlocked state")
	}
}
