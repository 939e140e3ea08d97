package analysis

import (
	"fmt"

	"github.com/pacelab/models"
)

// RollingSamples is the trailing window used by the threshold ratio charts.
const RollingSamples = 10

// RatioKind selects one of the two ventilatory threshold ratios.
type RatioKind string

const (
	// RatioCO2O2 (VCO₂/VO₂) rises at the first ventilatory threshold.
	RatioCO2O2 RatioKind = "vco2_vo2"
	// RatioAirCO2 (VE/VCO₂) rises at the second ventilatory threshold.
	RatioAirCO2 RatioKind = "ve_vco2"
)

func ParseRatioKind(s string) (RatioKind, error) {
	switch RatioKind(s) {
	case RatioCO2O2, RatioAirCO2:
		return RatioKind(s), nil
	case "":
		return RatioCO2O2, nil
	}
	return "", fmt.Errorf("unknown ratio %q", s)
}

func (k RatioKind) Label() string {
	if k == RatioAirCO2 {
		return "VE / VCO₂"
	}
	return "VCO₂ / VO₂"
}

// RatioSeries builds the raw threshold ratio of one subject's samples. Samples
// where either side of the ratio is not positive are skipped.
func RatioSeries(samples []models.Sample, kind RatioKind) []models.TimeValue {
	out := make([]models.TimeValue, 0, len(samples))
	for _, s := range samples {
		var num, den float64
		switch kind {
		case RatioAirCO2:
			num, den = s.AirRate, s.CO2Rate
		default:
			num, den = s.CO2Rate, s.O2Rate
		}
		if num <= 0 || den <= 0 {
			continue
		}
		out = append(out, models.TimeValue{Time: s.Time, Value: num / den})
	}
	return out
}

// TrailingMean averages each value with up to n-1 values before it.
func TrailingMean(series []models.TimeValue, n int) []models.TimeValue {
	if n < 1 {
		n = 1
	}
	out := make([]models.TimeValue, len(series))
	for i, p := range series {
		start := max(0, i-n+1)
		var sum float64
		for j := start; j <= i; j++ {
			sum += series[j].Value
		}
		out[i] = models.TimeValue{Time: p.Time, Value: sum / float64(i-start+1)}
	}
	return out
}

// ThresholdSeries is the smoothed ratio chart of one subject.
func ThresholdSeries(samples []models.Sample, kind RatioKind) []models.TimeValue {
	return TrailingMean(RatioSeries(samples, kind), RollingSamples)
}
