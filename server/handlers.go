package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/pacelab/analysis"
	"github.com/pacelab/models"
	"github.com/pacelab/templates"
)

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func queryOr(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return def
}

// optionalFloat parses an optional numeric query value.
func optionalFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, badRequest("invalid %s %q", key, raw)
	}
	return &v, nil
}

func metricOptions(ms []analysis.Metric) []templates.Option {
	out := make([]templates.Option, len(ms))
	for i, m := range ms {
		out[i] = templates.Option{Value: m.Key, Label: m.Label}
	}
	return out
}

func fieldOptions(fields []string) []templates.Option {
	out := make([]templates.Option, len(fields))
	for i, f := range fields {
		out[i] = templates.Option{Value: f, Label: label(f)}
	}
	return out
}

var demographicFields = []string{"sex", "age_group", "bmi_group"}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		render(w, r, templates.Index("No data loaded yet.", nil))
		return
	}
	ids := d.SubjectIDs()
	summary := fmt.Sprintf("%d tests, %d samples, loaded %s.", len(ids), len(d.Samples), d.LoadedAt.Format("2006-01-02 15:04"))
	render(w, r, templates.Index(summary, ids))
}

func (s *Server) demographicHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		pageError(w, r, err)
		return
	}
	group := queryOr(r, "group", "bmi_group")
	metric := queryOr(r, "metric", "HR")

	chart, err := analysis.Demographic(d, s.performanceBins(d), group, metric)
	if err != nil {
		pageError(w, r, &badRequestError{Err: err})
		return
	}
	html, err := renderChart(generateDemographicChart(chart))
	if err != nil {
		pageError(w, r, err)
		return
	}

	form := templates.Form{
		Action: "/demographic",
		Selects: []templates.Select{
			{Name: "group", Label: "Group", Options: fieldOptions(demographicFields), Selected: group},
			{Name: "metric", Label: "Metric", Options: metricOptions(analysis.DemographicMetrics), Selected: metric},
		},
	}
	render(w, r, templates.Chart("Demographic Comparison", form, html))
}

type groupedSeries struct {
	metric analysis.Metric
	field  string
	groups []string
	series map[string][]models.TimeValue
}

// aggregateRequest runs the grouped, smoothed aggregation named by the
// group, metric and window query parameters.
func (s *Server) aggregateRequest(r *http.Request, d *models.Dataset) (groupedSeries, error) {
	field := queryOr(r, "group", "sex")
	m, err := analysis.LookupMetric(queryOr(r, "metric", "HR"))
	if err != nil {
		return groupedSeries{}, &badRequestError{Err: err}
	}
	key, err := analysis.GroupKey(field, s.performanceBins(d))
	if err != nil {
		return groupedSeries{}, &badRequestError{Err: err}
	}

	window := s.cfg.SmoothingWindow
	if w, err := optionalFloat(r, "window"); err != nil {
		return groupedSeries{}, err
	} else if w != nil {
		window = *w
	}

	points, err := analysis.Aggregate(d.Samples, key, m.Fn, window)
	if err != nil {
		return groupedSeries{}, &badRequestError{Err: err}
	}
	groups, series := analysis.GroupSeries(points)
	return groupedSeries{metric: m, field: field, groups: groups, series: series}, nil
}

func (s *Server) timeSeriesHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		pageError(w, r, err)
		return
	}
	gs, err := s.aggregateRequest(r, d)
	if err != nil {
		pageError(w, r, err)
		return
	}

	title := gs.metric.Label + " over time by " + label(gs.field)
	html, err := renderChart(generateTimeSeriesChart(title, gs.metric, gs.groups, gs.series))
	if err != nil {
		pageError(w, r, err)
		return
	}

	form := templates.Form{
		Action: "/timeseries",
		Selects: []templates.Select{
			{Name: "group", Label: "Group", Options: fieldOptions(analysis.GroupFields), Selected: gs.field},
			{Name: "metric", Label: "Metric", Options: metricOptions(analysis.Metrics()), Selected: gs.metric.Key},
		},
		Inputs: []templates.Input{
			{Name: "window", Label: "Smoothing (s)", Value: queryOr(r, "window", strconv.FormatFloat(s.cfg.SmoothingWindow, 'f', -1, 64))},
		},
	}
	render(w, r, templates.Chart("Time Series", form, html))
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		jsonError(w, r, err)
		return
	}
	gs, err := s.aggregateRequest(r, d)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	png, err := exportPNG(gs.metric.Label+" by "+label(gs.field), gs.metric, gs.groups, gs.series)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", gs.metric.Key+"_"+gs.field+".png"))
	w.Write(png)
}

// subjectSamples resolves the subject query parameter, defaulting to the first test.
func subjectSamples(r *http.Request, d *models.Dataset) (string, []models.Sample, error) {
	ids := d.SubjectIDs()
	subject := queryOr(r, "subject", "")
	if subject == "" && len(ids) > 0 {
		subject = ids[0]
	}
	samples := d.SamplesFor(subject)
	if len(samples) == 0 {
		return subject, nil, fmt.Errorf("test %q: %w", subject, errNotFound)
	}
	return subject, samples, nil
}

func (s *Server) thresholdsHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		pageError(w, r, err)
		return
	}
	kind, err := analysis.ParseRatioKind(r.URL.Query().Get("ratio"))
	if err != nil {
		pageError(w, r, &badRequestError{Err: err})
		return
	}
	subject, samples, err := subjectSamples(r, d)
	if err != nil {
		pageError(w, r, err)
		return
	}

	raw := analysis.RatioSeries(samples, kind)
	smoothed := analysis.TrailingMean(raw, analysis.RollingSamples)
	html, err := renderChart(generateThresholdChart(subject, kind, raw, smoothed, d.ThresholdsFor(subject)))
	if err != nil {
		pageError(w, r, err)
		return
	}

	subjects := make([]templates.Option, 0, len(d.SubjectIDs()))
	for _, id := range d.SubjectIDs() {
		subjects = append(subjects, templates.Option{Value: id, Label: id})
	}
	form := templates.Form{
		Action: "/thresholds",
		Selects: []templates.Select{
			{Name: "subject", Label: "Test", Options: subjects, Selected: subject},
			{Name: "ratio", Label: "Ratio", Selected: string(kind), Options: []templates.Option{
				{Value: string(analysis.RatioCO2O2), Label: analysis.RatioCO2O2.Label()},
				{Value: string(analysis.RatioAirCO2), Label: analysis.RatioAirCO2.Label()},
			}},
		},
	}
	render(w, r, templates.Chart("Threshold Detection", form, html))
}

type nearestResponse struct {
	Subject string  `json:"subject"`
	Ratio   string  `json:"ratio"`
	Query   float64 `json:"query"`
	Time    float64 `json:"time"`
	Value   float64 `json:"value"`
	X       float64 `json:"x,omitempty"`
}

// nearestHandler answers tooltip lookups on the threshold chart, either by
// time or by pixel position on a chart of the given width.
func (s *Server) nearestHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		jsonError(w, r, err)
		return
	}
	kind, err := analysis.ParseRatioKind(r.URL.Query().Get("ratio"))
	if err != nil {
		jsonError(w, r, &badRequestError{Err: err})
		return
	}
	subject, samples, err := subjectSamples(r, d)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	t, err := optionalFloat(r, "t")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	px, err := optionalFloat(r, "px")
	if err != nil {
		jsonError(w, r, err)
		return
	}
	width, err := optionalFloat(r, "width")
	if err != nil {
		jsonError(w, r, err)
		return
	}

	series := analysis.ThresholdSeries(samples, kind)
	resp := nearestResponse{Subject: subject, Ratio: string(kind)}
	var scale *analysis.LinearScale
	if width != nil && *width > 0 {
		sc := analysis.ScaleFor(series, *width)
		scale = &sc
	}
	switch {
	case t != nil:
		resp.Query = *t
	case px != nil && scale != nil:
		resp.Query = scale.Invert(*px)
	default:
		jsonError(w, r, badRequest("either t or px and width are required"))
		return
	}

	p, ok := analysis.NewNearestIndex(series).Nearest(resp.Query)
	if !ok {
		jsonError(w, r, &models.MissingDataError{Field: string(kind), Subjects: []string{subject}})
		return
	}
	resp.Time, resp.Value = p.Time, p.Value
	if scale != nil {
		resp.X = scale.Apply(p.Time)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) similarHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		pageError(w, r, err)
		return
	}

	units := queryOr(r, "units", "metric")
	if units != "metric" && units != "imperial" {
		pageError(w, r, badRequest("invalid units %q", units))
		return
	}
	q := analysis.Query{Sex: r.URL.Query().Get("sex"), Metric: units == "metric"}
	for key, dst := range map[string]**float64{"age": &q.Age, "height": &q.Height, "weight": &q.Weight} {
		v, err := optionalFloat(r, key)
		if err != nil {
			pageError(w, r, err)
			return
		}
		*dst = v
	}

	matches, err := analysis.FindSimilar(d, q, analysis.SimilarLimit)
	if err != nil {
		pageError(w, r, err)
		return
	}

	rows := make([]templates.SimilarRow, len(matches))
	for i, m := range matches {
		height, weight := m.Subject.HeightMetric, m.Subject.WeightMetric
		hUnit, wUnit := "cm", "kg"
		if !q.Metric {
			height, weight = m.Subject.HeightImperial, m.Subject.WeightImperial
			hUnit, wUnit = "in", "lb"
		}
		rows[i] = templates.SimilarRow{
			SubjectID: m.Subject.SubjectID,
			Sex:       m.Subject.Sex,
			Age:       strconv.FormatFloat(m.Subject.Age, 'f', 0, 64),
			Height:    strconv.FormatFloat(height, 'f', 1, 64) + " " + hUnit,
			Weight:    strconv.FormatFloat(weight, 'f', 1, 64) + " " + wUnit,
			Duration:  templates.FormatClock(m.Duration),
		}
	}

	form := templates.Form{
		Action: "/similar",
		Selects: []templates.Select{
			{Name: "sex", Label: "Sex", Selected: q.Sex, Options: []templates.Option{
				{Value: "", Label: "Any"}, {Value: "Male", Label: "Male"}, {Value: "Female", Label: "Female"},
			}},
			{Name: "units", Label: "Units", Selected: units, Options: []templates.Option{
				{Value: "metric", Label: "Metric"}, {Value: "imperial", Label: "Imperial"},
			}},
		},
		Inputs: []templates.Input{
			{Name: "age", Label: "Age", Value: r.URL.Query().Get("age")},
			{Name: "height", Label: "Height", Value: r.URL.Query().Get("height")},
			{Name: "weight", Label: "Weight", Value: r.URL.Query().Get("weight")},
		},
	}
	render(w, r, templates.Similar(form, rows))
}
