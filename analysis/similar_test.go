package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/pacelab/models"
)

func ptr(v float64) *float64 { return &v }

func similarDataset() *models.Dataset {
	subjects := []models.Subject{
		{SubjectID: "1_1", Sex: "M", Age: 20, AgeNormal: -1, HeightNormal: 0, WeightNormal: 0},
		{SubjectID: "2_1", Sex: "F", Age: 30, AgeNormal: 0, HeightNormal: 1, WeightNormal: 0},
		{SubjectID: "3_1", Sex: "M", Age: 40, AgeNormal: 1, HeightNormal: -1, WeightNormal: 1},
	}
	stats := models.NormStats{
		Age:            models.FieldStats{Mean: 30, Std: 10},
		HeightMetric:   models.FieldStats{Mean: 175, Std: 10},
		WeightMetric:   models.FieldStats{Mean: 70, Std: 10},
		HeightImperial: models.FieldStats{Mean: 69, Std: 4},
		WeightImperial: models.FieldStats{Mean: 154, Std: 22},
	}
	samples := []models.Sample{
		{SubjectID: "1_1", Time: 0}, {SubjectID: "1_1", Time: 600},
		{SubjectID: "3_1", Time: 0}, {SubjectID: "3_1", Time: 900},
	}
	return models.NewDataset(samples, subjects, nil, stats)
}

func TestDistanceWeightsAgeDouble(t *testing.T) {
	d := similarDataset()
	s, _ := d.Subject("1_1")

	// Input age 40 → z=1, subject z=-1 → (2)^2 * 2 = 8.
	got := Distance(s, Query{Age: ptr(40)}, d.Stats)
	if got != 8 {
		t.Errorf("Distance = %v, want 8", got)
	}

	if !math.IsInf(Distance(s, Query{Sex: "m"}, d.Stats), 1) {
		t.Error("expected +Inf without numeric input")
	}
}

func TestFindSimilarSortsByDistance(t *testing.T) {
	d := similarDataset()

	matches, err := FindSimilar(d, Query{Age: ptr(40), Height: ptr(165), Metric: true}, SimilarLimit)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Subject.SubjectID != "3_1" {
		t.Errorf("expected 3_1 first, got %s", matches[0].Subject.SubjectID)
	}
	if matches[0].Duration != 900 {
		t.Errorf("expected duration 900, got %v", matches[0].Duration)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("matches not sorted: %+v", matches)
		}
	}
}

func TestFindSimilarFiltersBySexAndKeepsOrder(t *testing.T) {
	d := similarDataset()

	matches, err := FindSimilar(d, Query{Sex: " m "}, 1)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Subject.SubjectID != "1_1" {
		t.Errorf("expected first male subject in dataset order, got %+v", matches)
	}
}

func TestFindSimilarNotReady(t *testing.T) {
	if _, err := FindSimilar(nil, Query{}, 5); !errors.Is(err, models.ErrDataNotReady) {
		t.Errorf("expected ErrDataNotReady, got %v", err)
	}
}
