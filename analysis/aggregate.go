package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pacelab/models"
)

// KeyFunc picks the categorical group of a sample.
type KeyFunc func(models.Sample) string

// MetricFunc extracts the value being charted. Returning
// models.ErrDivisionUndefined excludes the sample; any other error aborts.
type MetricFunc func(models.Sample) (float64, error)

type bucket struct {
	time  float64
	sum   float64
	count int
}

// Aggregate averages metric per (group, time), smooths each group with an
// inclusive window of ±windowSeconds/2 over the bucketed times and returns
// the finite points ordered by time, then group.
func Aggregate(samples []models.Sample, key KeyFunc, metric MetricFunc, windowSeconds float64) ([]models.AggregatedPoint, error) {
	if windowSeconds < 0 || math.IsNaN(windowSeconds) {
		return nil, fmt.Errorf("invalid smoothing window %v", windowSeconds)
	}

	groups := make(map[string]map[float64]*bucket)
	for _, s := range samples {
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
			continue
		}
		v, err := metric(s)
		if err != nil {
			if errors.Is(err, models.ErrDivisionUndefined) {
				continue
			}
			return nil, fmt.Errorf("metric for subject %s at %.1fs: %w", s.SubjectID, s.Time, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		g := key(s)
		byTime, ok := groups[g]
		if !ok {
			byTime = make(map[float64]*bucket)
			groups[g] = byTime
		}
		b, ok := byTime[s.Time]
		if !ok {
			b = &bucket{time: s.Time}
			byTime[s.Time] = b
		}
		b.sum += v
		b.count++
	}

	groupNames := make([]string, 0, len(groups))
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)

	var out []models.AggregatedPoint
	for _, g := range groupNames {
		series := make([]models.TimeValue, 0, len(groups[g]))
		for _, b := range groups[g] {
			series = append(series, models.TimeValue{Time: b.time, Value: b.sum / float64(b.count)})
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Time < series[j].Time })

		for _, p := range SmoothWindow(series, windowSeconds) {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			out = append(out, models.AggregatedPoint{Group: g, Time: p.Time, Value: p.Value})
		}
	}

	// Groups were appended in name order, so a stable sort on time keeps ties by group.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// SmoothWindow replaces each value of a time-sorted series with the mean of all
// values whose time lies within ±windowSeconds/2 of it, both ends inclusive.
// The window bounds move with two pointers; the sum is taken in series order so
// results match a brute-force scan exactly.
func SmoothWindow(series []models.TimeValue, windowSeconds float64) []models.TimeValue {
	half := windowSeconds / 2
	out := make([]models.TimeValue, len(series))
	lo, hi := 0, 0
	for i, p := range series {
		for lo < len(series) && p.Time-series[lo].Time > half {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < len(series) && series[hi+1].Time-p.Time <= half {
			hi++
		}

		var sum float64
		for j := lo; j <= hi; j++ {
			sum += series[j].Value
		}
		out[i] = models.TimeValue{Time: p.Time, Value: sum / float64(hi-lo+1)}
	}
	return out
}

// GroupSeries splits aggregated points into per-group series, keeping time order.
// The returned names are sorted.
func GroupSeries(points []models.AggregatedPoint) ([]string, map[string][]models.TimeValue) {
	series := make(map[string][]models.TimeValue)
	for _, p := range points {
		series[p.Group] = append(series[p.Group], models.TimeValue{Time: p.Time, Value: p.Value})
	}
	names := make([]string, 0, len(series))
	for g := range series {
		names = append(names, g)
	}
	sort.Strings(names)
	return names, series
}
