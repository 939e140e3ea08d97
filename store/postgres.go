// Package store reads the test datasets from Postgres.
package store

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pacelab/models"
)

// PostgresSource implements models.Source over the samples, subjects,
// thresholds and subject_stats tables.
type PostgresSource struct {
	db Querier
}

func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadSamples(ctx context.Context) ([]models.Sample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id_test, time, hr, rr, o2_rate, co2_rate, air_rate, dist_km, speed,
		       COALESCE(sex, ''), COALESCE(age_group, ''), COALESCE(bmi_group, '')
		FROM samples
		ORDER BY id_test, time
	`)
	if err != nil {
		return nil, &models.LoadError{Source: "postgres samples", Err: err}
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var (
			sample                            models.Sample
			hr, rr, o2, co2, air, dist, speed *float64
		)
		if err := rows.Scan(&sample.SubjectID, &sample.Time, &hr, &rr, &o2, &co2, &air, &dist, &speed,
			&sample.Sex, &sample.AgeGroup, &sample.BMIGroup); err != nil {
			return nil, &models.LoadError{Source: "postgres samples", Err: err}
		}
		sample.HR, sample.RR = orNaN(hr), orNaN(rr)
		sample.O2Rate, sample.CO2Rate, sample.AirRate = orNaN(o2), orNaN(co2), orNaN(air)
		sample.DistKm, sample.Speed = orNaN(dist), orNaN(speed)
		sample.Sex = models.SexLabel(sample.Sex)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.LoadError{Source: "postgres samples", Err: err}
	}
	return samples, nil
}

func (s *PostgresSource) LoadSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id_test, COALESCE(sex, ''), age, height_metric, weight_metric, height_imperial, weight_imperial,
		       age_normal, height_normal, weight_normal,
		       COALESCE(age_group, ''), COALESCE(bmi_group, '')
		FROM subjects
		ORDER BY id_test
	`)
	if err != nil {
		return nil, &models.LoadError{Source: "postgres subjects", Err: err}
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.SubjectID, &sub.Sex, &sub.Age, &sub.HeightMetric, &sub.WeightMetric,
			&sub.HeightImperial, &sub.WeightImperial, &sub.AgeNormal, &sub.HeightNormal, &sub.WeightNormal,
			&sub.AgeGroup, &sub.BMIGroup); err != nil {
			return nil, &models.LoadError{Source: "postgres subjects", Err: err}
		}
		sub.Sex = models.SexLabel(sub.Sex)
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.LoadError{Source: "postgres subjects", Err: err}
	}
	return subjects, nil
}

func (s *PostgresSource) LoadThresholds(ctx context.Context) ([]models.ThresholdSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id_test, COALESCE(sex, ''), COALESCE(age_group, ''), COALESCE(bmi_group, ''),
		       threshold, time, COALESCE(threshold_gap, 0)
		FROM thresholds
		ORDER BY id_test, threshold
	`)
	if err != nil {
		return nil, &models.LoadError{Source: "postgres thresholds", Err: err}
	}
	defer rows.Close()

	var out []models.ThresholdSummary
	for rows.Next() {
		var th models.ThresholdSummary
		if err := rows.Scan(&th.SubjectID, &th.Sex, &th.AgeGroup, &th.BMIGroup,
			&th.Threshold, &th.Time, &th.Gap); err != nil {
			return nil, &models.LoadError{Source: "postgres thresholds", Err: err}
		}
		th.Sex = models.SexLabel(th.Sex)
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.LoadError{Source: "postgres thresholds", Err: err}
	}
	return out, nil
}

// LoadStats reads the mean and std rows of subject_stats.
func (s *PostgresSource) LoadStats(ctx context.Context) (models.NormStats, error) {
	var stats models.NormStats
	rows, err := s.db.Query(ctx, `
		SELECT label, age, height_metric, weight_metric, height_imperial, weight_imperial
		FROM subject_stats
	`)
	if err != nil {
		return stats, &models.LoadError{Source: "postgres subject_stats", Err: err}
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var (
			label string
			v     [5]float64
		)
		if err := rows.Scan(&label, &v[0], &v[1], &v[2], &v[3], &v[4]); err != nil {
			return stats, &models.LoadError{Source: "postgres subject_stats", Err: err}
		}
		fields := []*models.FieldStats{&stats.Age, &stats.HeightMetric, &stats.WeightMetric, &stats.HeightImperial, &stats.WeightImperial}
		switch strings.ToLower(label) {
		case "mean":
			for i, f := range fields {
				f.Mean = v[i]
			}
		case "std":
			for i, f := range fields {
				f.Std = v[i]
			}
		default:
			continue
		}
		seen[strings.ToLower(label)] = true
	}
	if err := rows.Err(); err != nil {
		return stats, &models.LoadError{Source: "postgres subject_stats", Err: err}
	}
	if !seen["mean"] || !seen["std"] {
		return stats, &models.LoadError{
			Source: "postgres subject_stats",
			Err:    fmt.Errorf("expected mean and std rows: %w", &models.MissingDataError{Field: "subject_stats"}),
		}
	}
	return stats, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
