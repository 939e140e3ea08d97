package loader

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pacelab/models"
	"github.com/tormoder/fit"
)

// ParseFIT turns the record messages of an activity FIT file into samples
// for subjectID, with time measured from the first valid timestamp. FIT
// recordings carry no gas exchange, so those columns are NaN.
func ParseFIT(r io.Reader, subjectID string) ([]models.Sample, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("not an activity file: %w", err)
	}

	var (
		start   time.Time
		samples []models.Sample
	)
	for _, rec := range activity.Records {
		if rec == nil || rec.Timestamp.IsZero() || fit.IsBaseTime(rec.Timestamp) {
			continue
		}
		if start.IsZero() {
			start = rec.Timestamp
		}

		hr := math.NaN()
		if rec.HeartRate != math.MaxUint8 {
			hr = float64(rec.HeartRate)
		}

		samples = append(samples, models.Sample{
			SubjectID: subjectID,
			Time:      rec.Timestamp.Sub(start).Seconds(),
			HR:        hr,
			RR:        math.NaN(),
			O2Rate:    math.NaN(),
			CO2Rate:   math.NaN(),
			AirRate:   math.NaN(),
			DistKm:    validScaled(rec.GetDistanceScaled()) / 1000,
			Speed:     recordSpeed(rec) * 3.6,
		})
	}
	if len(samples) == 0 {
		return nil, &models.MissingDataError{Field: "timestamped records", Subjects: []string{subjectID}}
	}
	return samples, nil
}

// recordSpeed prefers the enhanced field, in m/s.
func recordSpeed(rec *fit.RecordMsg) float64 {
	if v := rec.GetEnhancedSpeedScaled(); !math.IsNaN(v) && v >= 0 {
		return v
	}
	if v := rec.GetSpeedScaled(); !math.IsNaN(v) && v >= 0 {
		return v
	}
	return math.NaN()
}

func validScaled(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return math.NaN()
	}
	return v
}

// LoadFIT reads a FIT recording from a path or URL.
func LoadFIT(ctx context.Context, client *http.Client, source, subjectID string) ([]models.Sample, error) {
	return load(ctx, client, source, func(r io.Reader) ([]models.Sample, error) {
		return ParseFIT(r, subjectID)
	})
}
