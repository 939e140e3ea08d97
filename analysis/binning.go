package analysis

import (
	"math"
	"sort"

	"github.com/pacelab/models"
)

// Quantile returns the p-quantile of an ascending slice using linear
// interpolation between order statistics: h = (n-1)p, x[floor h] + (h - floor h)(x[floor h + 1] - x[floor h]).
// This is the R-7 / d3.quantile definition. It returns NaN for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	if p <= 0 || n == 1 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*(h-float64(lo))
}

// MaxSpeedBySubject returns each subject's peak speed. NaN speeds are ignored;
// subjects with no finite speed are left out.
func MaxSpeedBySubject(samples []models.Sample) map[string]float64 {
	maxBy := make(map[string]float64)
	for _, s := range samples {
		if math.IsNaN(s.Speed) {
			continue
		}
		if m, ok := maxBy[s.SubjectID]; !ok || s.Speed > m {
			maxBy[s.SubjectID] = s.Speed
		}
	}
	return maxBy
}

// BinByQuartile classifies every value by the quartiles of the whole population.
func BinByQuartile(values map[string]float64) map[string]models.PerformanceBin {
	all := make([]float64, 0, len(values))
	for _, v := range values {
		all = append(all, v)
	}
	sort.Float64s(all)

	q1 := Quantile(all, 0.25)
	q2 := Quantile(all, 0.5)
	q3 := Quantile(all, 0.75)

	bins := make(map[string]models.PerformanceBin, len(values))
	for id, v := range values {
		switch {
		case v <= q1:
			bins[id] = models.Bin25
		case v <= q2:
			bins[id] = models.Bin50
		case v <= q3:
			bins[id] = models.Bin75
		default:
			bins[id] = models.Bin100
		}
	}
	return bins
}

// ComputeBins assigns each subject a performance bin from the quartile of its
// peak speed. Subjects listed in subjects that have no usable sample are left
// out of the result and reported through a *models.MissingDataError; the bins
// of everyone else are still returned.
func ComputeBins(samples []models.Sample, subjects []models.Subject) (map[string]models.PerformanceBin, error) {
	maxBy := MaxSpeedBySubject(samples)
	bins := BinByQuartile(maxBy)

	var missing []string
	for _, s := range subjects {
		if _, ok := maxBy[s.SubjectID]; !ok {
			missing = append(missing, s.SubjectID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return bins, &models.MissingDataError{Field: "speed", Subjects: missing}
	}
	return bins, nil
}
