package analysis

import (
	"errors"
	"testing"

	"github.com/pacelab/models"
)

func demographicDataset() *models.Dataset {
	samples := []models.Sample{
		{SubjectID: "a", Time: 0, HR: 100, Speed: 8, BMIGroup: "Overweight", Sex: "Male"},
		{SubjectID: "a", Time: 1, HR: 120, Speed: 9, BMIGroup: "Overweight", Sex: "Male"},
		{SubjectID: "b", Time: 0, HR: 150, Speed: 14, BMIGroup: "Normal", Sex: "Female"},
		{SubjectID: "c", Time: 0, HR: 160, Speed: 16, BMIGroup: "Underweight", Sex: "Female"},
	}
	thresholds := []models.ThresholdSummary{
		{SubjectID: "a", BMIGroup: "Overweight", Threshold: 1, Time: 300, Gap: 120},
		{SubjectID: "b", BMIGroup: "Normal", Threshold: 1, Time: 360, Gap: 180},
		{SubjectID: "b", BMIGroup: "Normal", Threshold: 2, Time: 540},
	}
	return models.NewDataset(samples, nil, thresholds, models.NormStats{})
}

func TestDemographicSampleMetric(t *testing.T) {
	d := demographicDataset()
	bins := map[string]models.PerformanceBin{"a": models.Bin25, "b": models.Bin75, "c": models.Bin100}

	chart, err := Demographic(d, bins, "bmi_group", "HR")
	if err != nil {
		t.Fatalf("Demographic failed: %v", err)
	}

	wantGroups := []string{"underweight", "normal", "overweight"}
	if len(chart.Groups) != 3 {
		t.Fatalf("expected 3 groups, got %v", chart.Groups)
	}
	for i, g := range wantGroups {
		if chart.Groups[i] != g {
			t.Errorf("group %d: got %s, want %s", i, chart.Groups[i], g)
		}
	}
	if len(chart.Cells) != 12 {
		t.Fatalf("expected 12 cells, got %d", len(chart.Cells))
	}

	for _, c := range chart.Cells {
		switch {
		case c.Group == "overweight" && c.Bin == models.Bin25:
			if !c.Present || c.Value != 110 {
				t.Errorf("expected mean 110 for overweight/25%%, got %+v", c)
			}
		case c.Group == "normal" && c.Bin == models.Bin75:
			if c.Value != 150 {
				t.Errorf("expected 150 for normal/75%%, got %+v", c)
			}
		case c.Group == "normal" && c.Bin == models.Bin25:
			if c.Present || c.Value != 0 {
				t.Errorf("expected empty cell, got %+v", c)
			}
		}
	}
}

func TestDemographicThresholdGapInMinutes(t *testing.T) {
	d := demographicDataset()
	bins := map[string]models.PerformanceBin{"a": models.Bin25, "b": models.Bin75}

	chart, err := Demographic(d, bins, "bmi_group", "threshold_gap")
	if err != nil {
		t.Fatalf("Demographic failed: %v", err)
	}
	for _, c := range chart.Cells {
		if c.Group == "normal" && c.Bin == models.Bin75 && c.Value != 3 {
			t.Errorf("expected gap 3 min, got %+v", c)
		}
		if c.Group == "overweight" && c.Bin == models.Bin25 && c.Value != 2 {
			t.Errorf("expected gap 2 min, got %+v", c)
		}
	}
}

func TestDemographicRejectsBadInput(t *testing.T) {
	d := demographicDataset()

	if _, err := Demographic(d, nil, "bmi_group", "nope"); err == nil {
		t.Error("expected error for unknown metric")
	}
	if _, err := Demographic(d, nil, "shoe_size", "HR"); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := Demographic(nil, nil, "sex", "HR"); !errors.Is(err, models.ErrDataNotReady) {
		t.Errorf("expected ErrDataNotReady, got %v", err)
	}
}
