package models

import (
	"sort"
	"time"
)

// Dataset is the loaded, read-only bundle every chart and playback session works from.
type Dataset struct {
	Samples    []Sample           `json:"samples"`
	Subjects   []Subject          `json:"subjects"`
	Thresholds []ThresholdSummary `json:"thresholds"`
	Stats      NormStats          `json:"stats"`
	LoadedAt   time.Time          `json:"loaded_at"`

	bySubject map[string][]Sample
	subjects  map[string]Subject
}

// NewDataset copies and sorts the samples by subject and time and indexes them.
func NewDataset(samples []Sample, subjects []Subject, thresholds []ThresholdSummary, stats NormStats) *Dataset {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SubjectID != sorted[j].SubjectID {
			return sorted[i].SubjectID < sorted[j].SubjectID
		}
		return sorted[i].Time < sorted[j].Time
	})

	d := &Dataset{
		Samples:    sorted,
		Subjects:   subjects,
		Thresholds: thresholds,
		Stats:      stats,
		LoadedAt:   time.Now(),
		bySubject:  make(map[string][]Sample),
		subjects:   make(map[string]Subject, len(subjects)),
	}

	// Sub-slices share the sorted backing array.
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].SubjectID != sorted[start].SubjectID {
			d.bySubject[sorted[start].SubjectID] = sorted[start:i:i]
			start = i
		}
	}
	for _, s := range subjects {
		d.subjects[s.SubjectID] = s
	}
	return d
}

// Ready reports whether the dataset has any samples to work with.
func (d *Dataset) Ready() bool {
	return d != nil && len(d.Samples) > 0
}

// SamplesFor returns the time-ordered samples of one subject.
func (d *Dataset) SamplesFor(subjectID string) []Sample {
	if d == nil {
		return nil
	}
	return d.bySubject[subjectID]
}

func (d *Dataset) Subject(subjectID string) (Subject, bool) {
	if d == nil {
		return Subject{}, false
	}
	s, ok := d.subjects[subjectID]
	return s, ok
}

// SubjectIDs returns the ids of every subject with samples, sorted.
func (d *Dataset) SubjectIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.bySubject))
	for id := range d.bySubject {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Duration is the last sample time of a subject's test, 0 when unknown.
func (d *Dataset) Duration(subjectID string) float64 {
	samples := d.SamplesFor(subjectID)
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1].Time
}

// ThresholdsFor returns the threshold summaries recorded for one subject.
func (d *Dataset) ThresholdsFor(subjectID string) []ThresholdSummary {
	if d == nil {
		return nil
	}
	var out []ThresholdSummary
	for _, t := range d.Thresholds {
		if t.SubjectID == subjectID {
			out = append(out, t)
		}
	}
	return out
}
