package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestErrorEscapesMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := Error(`<script>alert(1)</script>`).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert") {
		t.Fatalf("message not escaped: %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected escaped message, got %s", out)
	}
}

func TestChartMarksSelectedOption(t *testing.T) {
	form := Form{
		Action: "/demographic",
		Selects: []Select{{
			Name:     "group",
			Label:    "Group",
			Options:  []Option{{Value: "sex", Label: "Sex"}, {Value: "bmi_group", Label: "BMI"}},
			Selected: "bmi_group",
		}},
	}

	var buf bytes.Buffer
	if err := Chart("Demographics", form, "<div id=\"c\"></div>").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `<option value="bmi_group" selected>`) {
		t.Errorf("expected selected option, got %s", out)
	}
	if !strings.Contains(out, `<div id="c"></div>`) {
		t.Errorf("expected chart html to be embedded unescaped")
	}
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestLayoutWrapsChildren(t *testing.T) {
	out := render(t, Error("boom"))
	if !strings.HasPrefix(out, "<!doctype html>") {
		t.Errorf("expected doctype first, got %s", out)
	}
	if !strings.Contains(out, `<a href="/similar">Similar Runners</a>`) {
		t.Errorf("expected nav links, got %s", out)
	}
	if !strings.Contains(out, `<h1>Something went wrong</h1><p class="error">boom</p></main>`) {
		t.Errorf("expected message inside main, got %s", out)
	}
}

func TestSimilarTable(t *testing.T) {
	form := Form{Action: "/similar", Inputs: []Input{{Name: "age", Label: "Age", Value: "30"}}}

	out := render(t, Similar(form, nil))
	if !strings.Contains(out, "<p>No runners match.</p>") || strings.Contains(out, "<table>") {
		t.Errorf("expected empty message, got %s", out)
	}
	if !strings.Contains(out, `<label>Age <input name="age" value="30"></label>`) {
		t.Errorf("expected age input, got %s", out)
	}

	out = render(t, Similar(form, []SimilarRow{{SubjectID: "7_1", Sex: "Female", Age: "31", Duration: "12:05"}}))
	for _, want := range []string{
		"<td>7_1</td><td>Female</td><td>31</td>",
		"<td>12:05</td>",
		`<a href="/thresholds?subject=7_1">thresholds</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %s", want, out)
		}
	}
}

func TestPlaybackPage(t *testing.T) {
	out := render(t, Playback("abc-123", "4_1", `<div id="playback-chart"></div>`))
	for _, want := range []string{
		"<title>Replay 4_1</title>",
		`<div id="playback" data-session="abc-123">`,
		`<button data-action="ack">ack</button>`,
		`<div id="message" hidden></div>`,
		`<div class="chart"><div id="playback-chart"></div></div>`,
		`new WebSocket(proto + location.host + "/ws/playback/" + id)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %s", want, out)
		}
	}
}

func TestIndexListsSubjects(t *testing.T) {
	out := render(t, Index("2 tests", []string{"1_1", "<b>"}))
	if !strings.Contains(out, "<option>1_1</option><option>&lt;b&gt;</option>") {
		t.Errorf("expected escaped subject options, got %s", out)
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[float64]string{0: "0:00", 59.9: "0:59", 65: "1:05", 705: "11:45"}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Errorf("FormatClock(%v) = %s, want %s", in, got, want)
		}
	}
}
