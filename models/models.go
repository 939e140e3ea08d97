package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sample is one row of a runner's cardiopulmonary test series.
type Sample struct {
	SubjectID string  `json:"subject_id"`
	Time      float64 `json:"time"`
	HR        float64 `json:"hr"`
	RR        float64 `json:"rr"`
	O2Rate    float64 `json:"o2_rate"`
	CO2Rate   float64 `json:"co2_rate"`
	AirRate   float64 `json:"air_rate"`
	DistKm    float64 `json:"dist_km"`
	Speed     float64 `json:"speed"`
	Sex       string  `json:"sex"`
	AgeGroup  string  `json:"age_group"`
	BMIGroup  string  `json:"bmi_group"`
}

// Subject holds the static demographic record of a runner.
type Subject struct {
	SubjectID      string  `json:"subject_id"`
	Sex            string  `json:"sex"`
	Age            float64 `json:"age"`
	HeightMetric   float64 `json:"height_metric"`
	WeightMetric   float64 `json:"weight_metric"`
	HeightImperial float64 `json:"height_imperial"`
	WeightImperial float64 `json:"weight_imperial"`
	AgeNormal      float64 `json:"age_normal"`
	HeightNormal   float64 `json:"height_normal"`
	WeightNormal   float64 `json:"weight_normal"`
	AgeGroup       string  `json:"age_group"`
	BMIGroup       string  `json:"bmi_group"`
}

// ThresholdSummary is a precomputed ventilatory threshold for one subject.
type ThresholdSummary struct {
	SubjectID string  `json:"subject_id"`
	Sex       string  `json:"sex"`
	AgeGroup  string  `json:"age_group"`
	BMIGroup  string  `json:"bmi_group"`
	Threshold int     `json:"threshold"`
	Time      float64 `json:"time"`
	Gap       float64 `json:"threshold_gap"`
}

// FieldStats is the mean/std pair of a single normalized field.
type FieldStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// NormStats holds the normalization statistics used by similarity scoring.
type NormStats struct {
	Age            FieldStats `json:"age"`
	HeightMetric   FieldStats `json:"height_metric"`
	WeightMetric   FieldStats `json:"weight_metric"`
	HeightImperial FieldStats `json:"height_imperial"`
	WeightImperial FieldStats `json:"weight_imperial"`
}

// SexLabel maps the codings found in the exports ("1"/"0", "F"/"M", any
// case) to "Female" or "Male". Unknown values are kept trimmed; blank stays blank.
func SexLabel(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "1", "f", "female":
		return "Female"
	case "0", "m", "male":
		return "Male"
	}
	return s
}

type PerformanceBin string

const (
	Bin25  PerformanceBin = "25%"
	Bin50  PerformanceBin = "50%"
	Bin75  PerformanceBin = "75%"
	Bin100 PerformanceBin = "100%"
)

// PerformanceBins lists the bins in ascending order.
var PerformanceBins = []PerformanceBin{Bin25, Bin50, Bin75, Bin100}

// AggregatedPoint is one smoothed value of a grouped time series.
type AggregatedPoint struct {
	Group string  `json:"group"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

type TimeValue struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// LoadError reports a failed fetch or parse of an input source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MissingDataError reports subjects or fields that a computation needed but did not find.
type MissingDataError struct {
	Field    string
	Subjects []string
}

func (e *MissingDataError) Error() string {
	if len(e.Subjects) == 0 {
		return fmt.Sprintf("missing data: %s", e.Field)
	}
	return fmt.Sprintf("missing data: %s for subjects %s", e.Field, strings.Join(e.Subjects, ", "))
}

var (
	// ErrDivisionUndefined marks a ratio metric whose denominator is zero.
	ErrDivisionUndefined = errors.New("division undefined: zero denominator")
	// ErrDataNotReady is returned when an operation runs before its dataset is loaded.
	ErrDataNotReady = errors.New("data not ready")
)
