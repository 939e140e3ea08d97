package server

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pacelab/analysis"
	"github.com/pacelab/models"
)

var exportPalette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
}

// exportPNG renders the grouped time series as a static PNG.
func exportPNG(title string, m analysis.Metric, groups []string, series map[string][]models.TimeValue) ([]byte, error) {
	var chartSeries []chart.Series
	for i, g := range groups {
		points := series[g]
		if len(points) == 0 {
			continue
		}
		xs := make([]float64, len(points))
		ys := make([]float64, len(points))
		for j, p := range points {
			xs[j], ys[j] = p.Time, p.Value
		}
		// go-chart needs at least two x values
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		col := exportPalette[i%len(exportPalette)]
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    label(g),
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 2},
		})
	}
	if len(chartSeries) == 0 {
		return nil, &models.MissingDataError{Field: m.Key}
	}

	ch := chart.Chart{
		Title:      title,
		Width:      1024,
		Height:     512,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Time (s)"},
		YAxis:      chart.YAxis{Name: yAxisName(m)},
		Series:     chartSeries,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render png: %w", err)
	}
	return buf.Bytes(), nil
}
