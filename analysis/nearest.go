package analysis

import (
	"math"
	"sort"

	"github.com/pacelab/models"
)

// Nearest returns the point closest in time to t. Ties go to the earlier time.
// ok is false for an empty input.
func Nearest(points []models.TimeValue, t float64) (best models.TimeValue, ok bool) {
	bestD := math.Inf(1)
	for _, p := range points {
		d := math.Abs(p.Time - t)
		if !ok || d < bestD || (d == bestD && p.Time < best.Time) {
			best, bestD, ok = p, d, true
		}
	}
	return best, ok
}

// NearestIndex answers repeated nearest-time queries over one series.
type NearestIndex struct {
	points []models.TimeValue
}

func NewNearestIndex(points []models.TimeValue) *NearestIndex {
	sorted := make([]models.TimeValue, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &NearestIndex{points: sorted}
}

func (n *NearestIndex) Len() int { return len(n.points) }

// Nearest has the same contract as the package-level Nearest.
func (n *NearestIndex) Nearest(t float64) (models.TimeValue, bool) {
	if len(n.points) == 0 {
		return models.TimeValue{}, false
	}
	// First point at or after t.
	i := sort.Search(len(n.points), func(i int) bool { return n.points[i].Time >= t })
	if i == 0 {
		return n.points[0], true
	}
	if i == len(n.points) || t-n.points[i-1].Time <= n.points[i].Time-t {
		return n.points[n.firstAt(i-1)], true
	}
	return n.points[i], true
}

// firstAt walks back to the first of any duplicate times ending at i.
func (n *NearestIndex) firstAt(i int) int {
	for i > 0 && n.points[i-1].Time == n.points[i].Time {
		i--
	}
	return i
}

// AtOrBefore returns the latest point whose time is <= t.
func (n *NearestIndex) AtOrBefore(t float64) (models.TimeValue, bool) {
	i := sort.Search(len(n.points), func(i int) bool { return n.points[i].Time > t })
	if i == 0 {
		return models.TimeValue{}, false
	}
	return n.points[i-1], true
}

// LinearScale maps a time domain onto a pixel range, like a chart x axis.
type LinearScale struct {
	Domain [2]float64
	Range  [2]float64
}

// ScaleFor builds a scale spanning the times of points onto [0, width].
func ScaleFor(points []models.TimeValue, width float64) LinearScale {
	s := LinearScale{Range: [2]float64{0, width}}
	if len(points) == 0 {
		s.Domain = [2]float64{0, 1}
		return s
	}
	lo, hi := points[0].Time, points[0].Time
	for _, p := range points {
		lo = math.Min(lo, p.Time)
		hi = math.Max(hi, p.Time)
	}
	s.Domain = [2]float64{lo, hi}
	return s
}

func (s LinearScale) Apply(t float64) float64 {
	d := s.Domain[1] - s.Domain[0]
	if d == 0 {
		return s.Range[0]
	}
	return s.Range[0] + (t-s.Domain[0])/d*(s.Range[1]-s.Range[0])
}

// Invert maps a pixel position back to a time.
func (s LinearScale) Invert(px float64) float64 {
	r := s.Range[1] - s.Range[0]
	if r == 0 {
		return s.Domain[0]
	}
	return s.Domain[0] + (px-s.Range[0])/r*(s.Domain[1]-s.Domain[0])
}

// FocusLock is the click-to-lock state of a chart's focus marker: a click
// locks the nearest point, a second click releases it.
type FocusLock struct {
	locked bool
	point  models.TimeValue
}

// Toggle locks onto the point nearest t, or unlocks if already locked.
func (f *FocusLock) Toggle(idx *NearestIndex, t float64) (models.TimeValue, bool) {
	if f.locked {
		f.locked = false
		f.point = models.TimeValue{}
		return models.TimeValue{}, false
	}
	p, ok := idx.Nearest(t)
	if !ok {
		return models.TimeValue{}, false
	}
	f.locked, f.point = true, p
	return p, true
}

func (f *FocusLock) Locked() (models.TimeValue, bool) {
	return f.point, f.locked
}
