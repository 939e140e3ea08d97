// Package templates holds the templ components the server renders. Edit the
// .templ files and regenerate the _templ.go files with templ generate.
package templates

//go:generate templ generate

import "strconv"

type Option struct {
	Value string
	Label string
}

// Select is a dropdown in a chart's control form.
type Select struct {
	Name     string
	Label    string
	Options  []Option
	Selected string
}

// Form is the GET form above a chart.
type Form struct {
	Action  string
	Selects []Select
	Inputs  []Input
}

type Input struct {
	Name  string
	Label string
	Value string
}

var navLinks = []Option{
	{Value: "/", Label: "Home"},
	{Value: "/demographic", Label: "Demographics"},
	{Value: "/timeseries", Label: "Time Series"},
	{Value: "/thresholds", Label: "Thresholds"},
	{Value: "/similar", Label: "Similar Runners"},
}

var playbackActions = []string{"start", "pause", "resume", "ack", "reset"}

// SimilarRow is one line of the similar-runner table.
type SimilarRow struct {
	SubjectID string
	Sex       string
	Age       string
	Height    string
	Weight    string
	Duration  string
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds float64) string {
	m := int(seconds) / 60
	s := int(seconds) % 60
	if s < 10 {
		return strconv.Itoa(m) + ":0" + strconv.Itoa(s)
	}
	return strconv.Itoa(m) + ":" + strconv.Itoa(s)
}
