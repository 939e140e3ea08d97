package analysis

import (
	"fmt"
	"strings"

	"github.com/pacelab/models"
)

// Metric is a named, chartable sample metric.
type Metric struct {
	Key   string
	Label string
	Unit  string
	Fn    MetricFunc
}

func field(fn func(models.Sample) float64) MetricFunc {
	return func(s models.Sample) (float64, error) { return fn(s), nil }
}

// Ratio divides two sample fields, failing with ErrDivisionUndefined on a zero denominator.
func Ratio(num, den func(models.Sample) float64) MetricFunc {
	return func(s models.Sample) (float64, error) {
		d := den(s)
		if d == 0 {
			return 0, models.ErrDivisionUndefined
		}
		return num(s) / d, nil
	}
}

var metrics = []Metric{
	{Key: "HR", Label: "Heart Rate", Unit: "bpm", Fn: field(func(s models.Sample) float64 { return s.HR })},
	{Key: "RR", Label: "Respiration Rate", Unit: "breaths/min", Fn: field(func(s models.Sample) float64 { return s.RR })},
	{Key: "O2_rate", Label: "O₂ Rate", Unit: "ml/min", Fn: field(func(s models.Sample) float64 { return s.O2Rate })},
	{Key: "CO2_rate", Label: "CO₂ Rate", Unit: "ml/min", Fn: field(func(s models.Sample) float64 { return s.CO2Rate })},
	{Key: "air_rate", Label: "Ventilation", Unit: "L/min", Fn: field(func(s models.Sample) float64 { return s.AirRate })},
	{Key: "speed", Label: "Speed", Unit: "km/h", Fn: field(func(s models.Sample) float64 { return s.Speed })},
	{Key: "o2_efficiency", Label: "O₂ Efficiency", Unit: "ml/L", Fn: Ratio(
		func(s models.Sample) float64 { return s.O2Rate },
		func(s models.Sample) float64 { return s.AirRate },
	)},
	{Key: "co2_o2", Label: "VCO₂ / VO₂", Unit: "", Fn: Ratio(
		func(s models.Sample) float64 { return s.CO2Rate },
		func(s models.Sample) float64 { return s.O2Rate },
	)},
	{Key: "air_co2", Label: "VE / VCO₂", Unit: "", Fn: Ratio(
		func(s models.Sample) float64 { return s.AirRate },
		func(s models.Sample) float64 { return s.CO2Rate },
	)},
}

// Metrics lists the built-in metrics in display order.
func Metrics() []Metric {
	out := make([]Metric, len(metrics))
	copy(out, metrics)
	return out
}

func LookupMetric(key string) (Metric, error) {
	for _, m := range metrics {
		if strings.EqualFold(m.Key, key) {
			return m, nil
		}
	}
	return Metric{}, fmt.Errorf("unknown metric %q", key)
}

// GroupFields lists the categorical fields samples can be binned by.
var GroupFields = []string{"sex", "age_group", "bmi_group", "perf_bin"}

// GroupKey returns the KeyFunc for a group field. perf_bin needs the bins
// computed by ComputeBins; subjects without a bin fall into "unknown".
func GroupKey(fieldName string, bins map[string]models.PerformanceBin) (KeyFunc, error) {
	switch fieldName {
	case "sex":
		return func(s models.Sample) string { return s.Sex }, nil
	case "age_group":
		return func(s models.Sample) string { return s.AgeGroup }, nil
	case "bmi_group":
		return func(s models.Sample) string { return strings.ToLower(s.BMIGroup) }, nil
	case "perf_bin":
		return func(s models.Sample) string {
			if b, ok := bins[s.SubjectID]; ok {
				return string(b)
			}
			return "unknown"
		}, nil
	}
	return nil, fmt.Errorf("unknown group field %q", fieldName)
}
