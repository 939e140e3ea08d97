package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/pacelab/models"
)

// SimilarLimit is how many runners the lookup table shows.
const SimilarLimit = 5

// Query is the demographic input of the similar-runner lookup. Nil fields are
// not filled in and take no part in the distance.
type Query struct {
	Sex    string
	Age    *float64
	Height *float64
	Weight *float64
	Metric bool
}

func (q Query) hasNumeric() bool {
	return q.Age != nil || q.Height != nil || q.Weight != nil
}

type Match struct {
	Subject  models.Subject `json:"subject"`
	Distance float64        `json:"distance"`
	Duration float64        `json:"duration"`
}

func normalize(v float64, f models.FieldStats) float64 {
	return (v - f.Mean) / f.Std
}

// Distance is the squared z-score distance between q and a subject. Age
// counts double. With no numeric input it is +Inf.
func Distance(s models.Subject, q Query, stats models.NormStats) float64 {
	if !q.hasNumeric() {
		return math.Inf(1)
	}
	var d float64
	if q.Age != nil {
		diff := normalize(*q.Age, stats.Age) - s.AgeNormal
		d += diff * diff * 2
	}
	if q.Height != nil {
		f := stats.HeightImperial
		if q.Metric {
			f = stats.HeightMetric
		}
		diff := normalize(*q.Height, f) - s.HeightNormal
		d += diff * diff
	}
	if q.Weight != nil {
		f := stats.WeightImperial
		if q.Metric {
			f = stats.WeightMetric
		}
		diff := normalize(*q.Weight, f) - s.WeightNormal
		d += diff * diff
	}
	return d
}

// FindSimilar returns up to limit subjects closest to q. Without numeric
// input the dataset order is kept.
func FindSimilar(d *models.Dataset, q Query, limit int) ([]Match, error) {
	if d == nil || len(d.Subjects) == 0 {
		return nil, models.ErrDataNotReady
	}
	sex := strings.ToLower(strings.TrimSpace(q.Sex))

	matches := make([]Match, 0, len(d.Subjects))
	for _, s := range d.Subjects {
		if sex != "" && strings.ToLower(s.Sex) != sex {
			continue
		}
		matches = append(matches, Match{
			Subject:  s,
			Distance: Distance(s, q, d.Stats),
			Duration: d.Duration(s.SubjectID),
		})
	}

	if q.hasNumeric() {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
