package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pacelab/analysis"
	"github.com/pacelab/models"
)

type renderer interface {
	Render(w io.Writer) error
}

func renderChart(c renderer) (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func tooltip(trigger string) charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{
		Show:            opts.Bool(true),
		Trigger:         trigger,
		BackgroundColor: "rgba(255, 255, 255, 0.9)",
		BorderColor:     "#ccc",
	})
}

func timeAxis() charts.GlobalOpts {
	return charts.WithXAxisOpts(opts.XAxis{
		Type:         "value",
		Name:         "Time (s)",
		NameLocation: "middle",
		NameGap:      30,
	})
}

func yAxisName(m analysis.Metric) string {
	if m.Unit == "" {
		return m.Label
	}
	return m.Label + " (" + m.Unit + ")"
}

// generateDemographicChart draws one bar per performance bin for every group.
func generateDemographicChart(c analysis.DemographicChart) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons"}),
		charts.WithTitleOpts(opts.Title{
			Title:    c.Metric.Label + " by " + label(c.Field),
			Subtitle: "Grouped by max-speed performance bin",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "bottom"}),
		charts.WithGridOpts(opts.Grid{Bottom: "20%"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:         yAxisName(c.Metric),
			NameLocation: "middle",
			NameGap:      50,
		}),
		tooltip("axis"),
	)

	groupLabels := make([]string, len(c.Groups))
	for i, g := range c.Groups {
		groupLabels[i] = label(g)
	}
	bar.SetXAxis(groupLabels)

	byBin := map[models.PerformanceBin]map[string]analysis.DemographicCell{}
	for _, cell := range c.Cells {
		if byBin[cell.Bin] == nil {
			byBin[cell.Bin] = map[string]analysis.DemographicCell{}
		}
		byBin[cell.Bin][cell.Group] = cell
	}
	for _, bin := range models.PerformanceBins {
		items := make([]opts.BarData, len(c.Groups))
		for i, g := range c.Groups {
			cell := byBin[bin][g]
			items[i] = opts.BarData{Value: roundTo(cell.Value, 2)}
		}
		bar.AddSeries("Top "+string(bin), items)
	}
	return bar
}

// generateTimeSeriesChart draws one smoothed line per group.
func generateTimeSeriesChart(title string, m analysis.Metric, groups []string, series map[string][]models.TimeValue) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "bottom"}),
		charts.WithGridOpts(opts.Grid{Bottom: "20%"}),
		timeAxis(),
		charts.WithYAxisOpts(opts.YAxis{Name: yAxisName(m), Scale: opts.Bool(true)}),
		tooltip("axis"),
	)

	for _, g := range groups {
		line.AddSeries(label(g), lineItems(series[g]))
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{
		Smooth:     opts.Bool(true),
		ShowSymbol: opts.Bool(false),
	}))
	return line
}

// generateThresholdChart overlays the raw ratio points with their trailing
// mean and marks the subject's detected thresholds.
func generateThresholdChart(subjectID string, kind analysis.RatioKind, raw, smoothed []models.TimeValue, thresholds []models.ThresholdSummary) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons"}),
		charts.WithTitleOpts(opts.Title{
			Title:    kind.Label() + " for test " + subjectID,
			Subtitle: fmt.Sprintf("Trailing mean over %d samples", analysis.RollingSamples),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "bottom"}),
		timeAxis(),
		charts.WithYAxisOpts(opts.YAxis{Name: kind.Label(), Scale: opts.Bool(true)}),
		tooltip("item"),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
	}
	for _, th := range thresholds {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  fmt.Sprintf("VT%d", th.Threshold),
			XAxis: th.Time,
		}))
	}
	line.AddSeries("Trailing mean", lineItems(smoothed), seriesOpts...)

	scatter := charts.NewScatter()
	points := make([]opts.ScatterData, len(raw))
	for i, p := range raw {
		points[i] = opts.ScatterData{Value: []interface{}{p.Time, roundTo(p.Value, 4)}, SymbolSize: 4}
	}
	scatter.AddSeries("Breath by breath", points)
	line.Overlap(scatter)
	return line
}

// generatePlaybackChart is the empty heart-rate chart the replay page fills
// in from the websocket. The fixed chart ID lets the page script find it.
func generatePlaybackChart(subjectID string, duration float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons", ChartID: "playback"}),
		charts.WithTitleOpts(opts.Title{Title: "Heart rate during test " + subjectID}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", Min: 0, Max: duration}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Heart Rate (bpm)", Scale: opts.Bool(true)}),
	)
	line.AddSeries("HR", []opts.LineData{})
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// lineItems converts a series to [time, value] pairs for a value x axis.
func lineItems(series []models.TimeValue) []opts.LineData {
	items := make([]opts.LineData, 0, len(series))
	for _, p := range series {
		items = append(items, opts.LineData{Value: []interface{}{p.Time, roundTo(p.Value, 3)}})
	}
	return items
}
