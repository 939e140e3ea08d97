package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pacelab/models"
)

// DemographicMetrics are the metrics of the performance comparison chart.
// The first four come from samples, the rest from threshold summaries.
var DemographicMetrics = []Metric{
	{Key: "HR", Label: "Heart Rate", Unit: "bpm"},
	{Key: "RR", Label: "Respiration Rate", Unit: "breaths/min"},
	{Key: "CO2_rate", Label: "CO₂ Volume", Unit: "ml/min"},
	{Key: "O2_rate", Label: "O₂ Volume", Unit: "ml/min"},
	{Key: "time_th1", Label: "Threshold 1 Time", Unit: "min"},
	{Key: "time_th2", Label: "Threshold 2 Time", Unit: "min"},
	{Key: "threshold_gap", Label: "Threshold Gap", Unit: "min"},
}

var bmiOrder = []string{"underweight", "normal", "overweight"}

// DemographicCell is the mean of one metric for a (group, performance bin) pair.
type DemographicCell struct {
	Group   string                `json:"group"`
	Bin     models.PerformanceBin `json:"bin"`
	Value   float64               `json:"value"`
	Present bool                  `json:"present"`
}

type DemographicChart struct {
	Field  string            `json:"field"`
	Metric Metric            `json:"-"`
	Groups []string          `json:"groups"`
	Cells  []DemographicCell `json:"cells"`
}

type rollup map[string]map[models.PerformanceBin]*bucket

func (r rollup) add(group string, bin models.PerformanceBin, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	byBin, ok := r[group]
	if !ok {
		byBin = make(map[models.PerformanceBin]*bucket)
		r[group] = byBin
	}
	b, ok := byBin[bin]
	if !ok {
		b = &bucket{}
		byBin[bin] = b
	}
	b.sum += v
	b.count++
}

func thresholdGroup(t models.ThresholdSummary, fieldName string) string {
	switch fieldName {
	case "sex":
		return t.Sex
	case "age_group":
		return t.AgeGroup
	case "bmi_group":
		return strings.ToLower(t.BMIGroup)
	}
	return ""
}

// Demographic rolls a metric up by demographic field and performance bin.
// Pairs without data get value 0 and Present false.
func Demographic(d *models.Dataset, bins map[string]models.PerformanceBin, fieldName, metricKey string) (DemographicChart, error) {
	if !d.Ready() {
		return DemographicChart{}, models.ErrDataNotReady
	}
	if fieldName == "perf_bin" {
		return DemographicChart{}, fmt.Errorf("cannot group by %q on the performance chart", fieldName)
	}
	key, err := GroupKey(fieldName, bins)
	if err != nil {
		return DemographicChart{}, err
	}

	var metric Metric
	for _, m := range DemographicMetrics {
		if m.Key == metricKey {
			metric = m
		}
	}
	if metric.Key == "" {
		return DemographicChart{}, fmt.Errorf("unknown demographic metric %q", metricKey)
	}

	r := make(rollup)
	switch metricKey {
	case "time_th1", "time_th2", "threshold_gap":
		want := 1
		if metricKey == "time_th2" {
			want = 2
		}
		for _, t := range d.Thresholds {
			if t.Threshold != want {
				continue
			}
			bin, ok := bins[t.SubjectID]
			if !ok {
				continue
			}
			v := t.Time / 60
			if metricKey == "threshold_gap" {
				v = t.Gap / 60
			}
			r.add(thresholdGroup(t, fieldName), bin, v)
		}
	default:
		m, err := LookupMetric(metricKey)
		if err != nil {
			return DemographicChart{}, err
		}
		for _, s := range d.Samples {
			bin, ok := bins[s.SubjectID]
			if !ok {
				continue
			}
			v, err := m.Fn(s)
			if err != nil {
				continue
			}
			r.add(key(s), bin, v)
		}
	}

	chart := DemographicChart{Field: fieldName, Metric: metric, Groups: demographicGroups(d, key, fieldName)}
	for _, g := range chart.Groups {
		for _, bin := range models.PerformanceBins {
			cell := DemographicCell{Group: g, Bin: bin}
			if b, ok := r[g][bin]; ok && b.count > 0 {
				cell.Value = b.sum / float64(b.count)
				cell.Present = true
			}
			chart.Cells = append(chart.Cells, cell)
		}
	}
	return chart, nil
}

// demographicGroups lists the groups seen in the samples; BMI groups keep
// their natural order.
func demographicGroups(d *models.Dataset, key KeyFunc, fieldName string) []string {
	seen := make(map[string]bool)
	for _, s := range d.Samples {
		seen[key(s)] = true
	}
	var groups []string
	if fieldName == "bmi_group" {
		for _, g := range bmiOrder {
			if seen[g] {
				groups = append(groups, g)
			}
		}
		return groups
	}
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
