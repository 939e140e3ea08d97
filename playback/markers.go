package playback

import "sort"

const (
	MarkerPhase1 = "phase1"
	MarkerVT1    = "vt1"
	MarkerPhase2 = "phase2"
	MarkerVT2    = "vt2"
	MarkerPhase3 = "phase3"
)

// Phase messages trail their threshold by a few seconds so the two don't collide.
const phaseDelay = 3

// PhaseMarkers returns the warm-up, threshold and effort-phase messages for a
// run whose ventilatory thresholds fall at vt1 and vt2 seconds. A threshold at
// or below zero is treated as absent along with the phase that follows it.
func PhaseMarkers(vt1, vt2 float64) []Marker {
	markers := []Marker{{
		ID:      MarkerPhase1,
		Time:    10,
		Message: "Phase 1: Light Effort. You're warming up. Breathing and heart rate are rising gradually.",
	}}
	if vt1 > 0 {
		markers = append(markers,
			Marker{
				ID:      MarkerVT1,
				Time:    vt1,
				Message: "VT1 Reached. Your body needs more energy than oxygen can provide. It starts using a backup system that creates acid, and makes extra CO2 while trying to neutralize it.",
			},
			Marker{
				ID:      MarkerPhase2,
				Time:    vt1 + phaseDelay,
				Message: "Phase 2: Moderate Effort. You're past your first threshold. Breathing is heavier but controlled.",
			})
	}
	if vt2 > 0 {
		markers = append(markers,
			Marker{
				ID:      MarkerVT2,
				Time:    vt2,
				Message: "VT2 Reached. The acid is building up too fast to handle. Your body starts breathing much harder to get rid of CO2.",
			},
			Marker{
				ID:      MarkerPhase3,
				Time:    vt2 + phaseDelay,
				Message: "Phase 3: Intense Effort. You're pushing to your limit. Breathing is sharp and rapid.",
			})
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Time < markers[j].Time })
	return markers
}
