// Package loader reads the test datasets from CSV files, URLs or FIT recordings.
package loader

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pacelab/models"
)

// number parses empty and NA cells as NaN instead of failing the whole file.
type number float64

func (n *number) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		*n = number(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type sampleRow struct {
	SubjectID string `csv:"ID_test"`
	Time      number `csv:"time"`
	HR        number `csv:"HR"`
	RR        number `csv:"RR"`
	O2Rate    number `csv:"O2_rate"`
	CO2Rate   number `csv:"CO2_rate"`
	AirRate   number `csv:"air_rate"`
	DistKm    number `csv:"dist_km"`
	Speed     number `csv:"Speed"`
	Sex       string `csv:"Sex"`
	AgeGroup  string `csv:"age_group"`
	BMIGroup  string `csv:"bmi_group"`
}

type subjectRow struct {
	SubjectID      string `csv:"ID_test"`
	Sex            string `csv:"Sex"`
	Age            number `csv:"Age"`
	HeightMetric   number `csv:"Height_metric"`
	WeightMetric   number `csv:"Weight_metric"`
	HeightImperial number `csv:"Height_imperial"`
	WeightImperial number `csv:"Weight_imperial"`
	AgeNormal      number `csv:"Age_normal"`
	HeightNormal   number `csv:"Height_normal"`
	WeightNormal   number `csv:"Weight_normal"`
	AgeGroup       string `csv:"age_group"`
	BMIGroup       string `csv:"bmi_group"`
}

type thresholdRow struct {
	SubjectID string `csv:"ID_test"`
	Sex       string `csv:"Sex"`
	AgeGroup  string `csv:"age_group"`
	BMIGroup  string `csv:"bmi_group"`
	Threshold int    `csv:"threshold"`
	Time      number `csv:"time"`
	Gap       number `csv:"threshold_gap"`
}

// finite is used for demographic columns, where a blank cell means zero.
func finite(n number) float64 {
	if math.IsNaN(float64(n)) {
		return 0
	}
	return float64(n)
}

func ParseSamples(r io.Reader) ([]models.Sample, error) {
	var rows []*sampleRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse samples: %w", err)
	}

	samples := make([]models.Sample, 0, len(rows))
	for i, row := range rows {
		if row.SubjectID == "" {
			return nil, fmt.Errorf("row %d: missing ID_test", i+2)
		}
		if math.IsNaN(float64(row.Time)) {
			return nil, fmt.Errorf("row %d: missing time for %s", i+2, row.SubjectID)
		}
		samples = append(samples, models.Sample{
			SubjectID: row.SubjectID,
			Time:      float64(row.Time),
			HR:        float64(row.HR),
			RR:        float64(row.RR),
			O2Rate:    float64(row.O2Rate),
			CO2Rate:   float64(row.CO2Rate),
			AirRate:   float64(row.AirRate),
			DistKm:    float64(row.DistKm),
			Speed:     float64(row.Speed),
			Sex:       models.SexLabel(row.Sex),
			AgeGroup:  row.AgeGroup,
			BMIGroup:  row.BMIGroup,
		})
	}
	return samples, nil
}

func ParseSubjects(r io.Reader) ([]models.Subject, error) {
	var rows []*subjectRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse subjects: %w", err)
	}

	subjects := make([]models.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, models.Subject{
			SubjectID:      row.SubjectID,
			Sex:            models.SexLabel(row.Sex),
			Age:            finite(row.Age),
			HeightMetric:   finite(row.HeightMetric),
			WeightMetric:   finite(row.WeightMetric),
			HeightImperial: finite(row.HeightImperial),
			WeightImperial: finite(row.WeightImperial),
			AgeNormal:      finite(row.AgeNormal),
			HeightNormal:   finite(row.HeightNormal),
			WeightNormal:   finite(row.WeightNormal),
			AgeGroup:       row.AgeGroup,
			BMIGroup:       row.BMIGroup,
		})
	}
	return subjects, nil
}

func ParseThresholds(r io.Reader) ([]models.ThresholdSummary, error) {
	var rows []*thresholdRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds: %w", err)
	}

	out := make([]models.ThresholdSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ThresholdSummary{
			SubjectID: row.SubjectID,
			Sex:       models.SexLabel(row.Sex),
			AgeGroup:  row.AgeGroup,
			BMIGroup:  row.BMIGroup,
			Threshold: row.Threshold,
			Time:      finite(row.Time),
			Gap:       finite(row.Gap),
		})
	}
	return out, nil
}

// ParseStats reads the normalization table. Its first column has an empty
// header and labels each row "mean" or "std".
func ParseStats(r io.Reader) (models.NormStats, error) {
	var stats models.NormStats
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return stats, fmt.Errorf("failed to parse stats: %w", err)
	}

	seen := map[string]bool{}
	for _, row := range rows {
		label := strings.ToLower(strings.TrimSpace(row[""]))
		if label != "mean" && label != "std" {
			continue
		}
		seen[label] = true
		fields := []struct {
			column string
			dst    *models.FieldStats
		}{
			{"Age", &stats.Age},
			{"Height_metric", &stats.HeightMetric},
			{"Weight_metric", &stats.WeightMetric},
			{"Height_imperial", &stats.HeightImperial},
			{"Weight_imperial", &stats.WeightImperial},
		}
		for _, f := range fields {
			raw, ok := row[f.column]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return stats, fmt.Errorf("stats %s/%s: %w", label, f.column, err)
			}
			if label == "mean" {
				f.dst.Mean = v
			} else {
				f.dst.Std = v
			}
		}
	}
	if !seen["mean"] || !seen["std"] {
		return stats, &models.MissingDataError{Field: "mean/std rows in stats"}
	}
	return stats, nil
}

// CSVSource loads the four datasets from file paths or URLs.
type CSVSource struct {
	Samples    string
	Subjects   string
	Stats      string
	Thresholds string
	Client     *http.Client
}

func load[T any](ctx context.Context, client *http.Client, source string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	r, err := Open(ctx, client, source)
	if err != nil {
		return zero, &models.LoadError{Source: source, Err: err}
	}
	defer r.Close()

	v, err := parse(r)
	if err != nil {
		return zero, &models.LoadError{Source: source, Err: err}
	}
	return v, nil
}

func (s *CSVSource) LoadSamples(ctx context.Context) ([]models.Sample, error) {
	return load(ctx, s.Client, s.Samples, ParseSamples)
}

// LoadSubjects returns no subjects when no path is configured.
func (s *CSVSource) LoadSubjects(ctx context.Context) ([]models.Subject, error) {
	if s.Subjects == "" {
		return nil, nil
	}
	return load(ctx, s.Client, s.Subjects, ParseSubjects)
}

func (s *CSVSource) LoadThresholds(ctx context.Context) ([]models.ThresholdSummary, error) {
	if s.Thresholds == "" {
		return nil, nil
	}
	return load(ctx, s.Client, s.Thresholds, ParseThresholds)
}

func (s *CSVSource) LoadStats(ctx context.Context) (models.NormStats, error) {
	if s.Stats == "" {
		return models.NormStats{}, nil
	}
	return load(ctx, s.Client, s.Stats, ParseStats)
}
