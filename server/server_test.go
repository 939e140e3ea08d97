package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pacelab/config"
	"github.com/pacelab/loader"
	"github.com/pacelab/models"
	"github.com/pacelab/playback"
	"github.com/pacelab/stream"
)

func testDataset() *models.Dataset {
	var samples []models.Sample
	people := []struct {
		id, sex, bmi string
		speed        float64
	}{
		{"1_1", "Female", "Normal", 10},
		{"2_1", "Male", "Overweight", 12},
		{"3_1", "Female", "Underweight", 14},
		{"4_1", "Male", "Normal", 16},
	}
	for _, p := range people {
		for t := 0; t < 10; t++ {
			samples = append(samples, models.Sample{
				SubjectID: p.id,
				Time:      float64(t),
				HR:        100 + float64(t),
				RR:        20,
				O2Rate:    2,
				CO2Rate:   1,
				AirRate:   40,
				Speed:     p.speed,
				Sex:       p.sex,
				BMIGroup:  p.bmi,
				AgeGroup:  "20-29",
			})
		}
	}
	subjects := []models.Subject{
		{SubjectID: "1_1", Sex: "Female", Age: 25, HeightMetric: 165, WeightMetric: 60, AgeNormal: -0.5},
		{SubjectID: "2_1", Sex: "Male", Age: 35, HeightMetric: 180, WeightMetric: 90, AgeNormal: 0.5},
	}
	thresholds := []models.ThresholdSummary{
		{SubjectID: "1_1", Threshold: 1, Time: 4, Gap: 3, BMIGroup: "Normal"},
		{SubjectID: "1_1", Threshold: 2, Time: 7, BMIGroup: "Normal"},
	}
	stats := models.NormStats{
		Age:          models.FieldStats{Mean: 30, Std: 10},
		HeightMetric: models.FieldStats{Mean: 175, Std: 10},
		WeightMetric: models.FieldStats{Mean: 75, Std: 15},
	}
	return models.NewDataset(samples, subjects, thresholds, stats)
}

func newTestServer(t *testing.T, d *models.Dataset) (*Server, *httptest.Server) {
	t.Helper()
	hub, err := stream.NewHub(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewHub failed: %v", err)
	}
	store := &models.DataStore{}
	if d != nil {
		store.Set(d)
	}
	cfg := config.Config{
		TickIntervalMs:  10,
		SpeedFactor:     50,
		VT1Time:         378,
		VT2Time:         705,
		SmoothingWindow: 2,
	}
	s := New(cfg, store, hub)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func get(t *testing.T, url string, accept string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.String()
}

func postJSON(t *testing.T, url string, form string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(form))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestPagesWithoutData(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "No data loaded yet") {
		t.Errorf("index: status %d body %q", resp.StatusCode, body)
	}

	for _, path := range []string{"/demographic", "/timeseries", "/thresholds", "/similar", "/api/nearest?t=1", "/export.png"} {
		resp, _ := get(t, ts.URL+path, "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("%s: expected 409 before load, got %d", path, resp.StatusCode)
		}
	}

	resp, _ = postJSON(t, ts.URL+"/playback", "subject=1_1")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("playback: expected 409 before load, got %d", resp.StatusCode)
	}
}

func TestChartPages(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	cases := []struct {
		path string
		want string
	}{
		{"/", "4 tests"},
		{"/demographic?group=sex&metric=HR", "echarts"},
		{"/demographic?metric=threshold_gap", "Threshold"},
		{"/timeseries?group=perf_bin&metric=co2_o2&window=0", "echarts"},
		{"/thresholds?subject=1_1&ratio=ve_vco2", "VT2"},
	}
	for _, c := range cases {
		resp, body := get(t, ts.URL+c.path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", c.path, resp.StatusCode)
			continue
		}
		if !strings.Contains(body, c.want) {
			t.Errorf("%s: expected %q in body", c.path, c.want)
		}
	}
}

func TestBadInputIs400(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	for _, path := range []string{
		"/demographic?metric=bogus",
		"/demographic?group=perf_bin",
		"/timeseries?metric=bogus",
		"/timeseries?group=shoe_size",
		"/timeseries?window=abc",
		"/timeseries?window=-1",
		"/thresholds?ratio=bogus",
		"/similar?age=old",
		"/similar?units=furlongs",
		"/api/nearest?subject=1_1",
	} {
		resp, _ := get(t, ts.URL+path, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}

	resp, _ := get(t, ts.URL+"/thresholds?subject=nobody", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown subject: expected 404, got %d", resp.StatusCode)
	}
}

func TestNearestAPI(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	resp, body := get(t, ts.URL+"/api/nearest?subject=1_1&t=3.4", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var got nearestResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Time != 3 || got.Value != 0.5 {
		t.Errorf("expected point (3, 0.5), got %+v", got)
	}

	_, body = get(t, ts.URL+"/api/nearest?subject=1_1&px=300&width=900", "")
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Time != 3 || math.Abs(got.X-300) > 1e-9 {
		t.Errorf("expected t=3 at x=300, got %+v", got)
	}
}

func TestSimilarTable(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	resp, body := get(t, ts.URL+"/similar?sex=Female&age=26&height=166", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<td>1_1</td>") || strings.Contains(body, "<td>2_1</td>") {
		t.Errorf("expected only the female runner, got %s", body)
	}
	if !strings.Contains(body, "0:09") {
		t.Errorf("expected test duration in table")
	}
}

func TestSimilarFiltersLoadedSubjectsBySex(t *testing.T) {
	const subjectsCSV = `ID_test,Sex,Age,Height_metric,Weight_metric,Height_imperial,Weight_imperial,Age_normal,Height_normal,Weight_normal
1_1,F,25,165,60,65,132,-0.5,-1,-1
2_1,M,35,180,85,71,187,0.5,0.5,1.2
`
	subjects, err := loader.ParseSubjects(strings.NewReader(subjectsCSV))
	if err != nil {
		t.Fatalf("ParseSubjects failed: %v", err)
	}
	base := testDataset()
	d := models.NewDataset(base.Samples, subjects, base.Thresholds, base.Stats)
	_, ts := newTestServer(t, d)

	for sex, want := range map[string]string{"Female": "1_1", "Male": "2_1"} {
		resp, body := get(t, ts.URL+"/similar?age=30&sex="+sex, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("sex=%s: status %d", sex, resp.StatusCode)
		}
		if !strings.Contains(body, "<td>"+want+"</td>") {
			t.Errorf("sex=%s: expected row for %s", sex, want)
		}
		if strings.Contains(body, "No runners match.") {
			t.Errorf("sex=%s: no subject matched", sex)
		}
	}
}

func TestExportPNG(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	resp, body := get(t, ts.URL+"/export.png?group=sex&metric=HR", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(body, "\x89PNG") {
		t.Errorf("expected PNG data")
	}
}

func TestPlaybackLifecycle(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	resp, body := postJSON(t, ts.URL+"/playback", "subject=1_1")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d %s", resp.StatusCode, body)
	}
	var created sessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.State.TotalDuration != 9 {
		t.Fatalf("unexpected session %+v", created)
	}
	base := ts.URL + "/playback/" + created.ID

	resp, _ = postJSON(t, base+"/ack", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("ack while stopped: expected 409, got %d", resp.StatusCode)
	}
	resp, _ = postJSON(t, base+"/rewind", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown action: expected 400, got %d", resp.StatusCode)
	}

	resp, body = postJSON(t, base+"/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d %s", resp.StatusCode, body)
	}

	// Markers come from the subject's thresholds at 4s and 7s.
	deadline := time.Now().Add(2 * time.Second)
	var st sessionResponse
	for time.Now().Before(deadline) {
		_, body := get(t, base, "application/json")
		json.Unmarshal([]byte(body), &st)
		if st.State.Status == playback.ThresholdPaused {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st.State.Status != playback.ThresholdPaused {
		t.Fatalf("expected a threshold pause, got %+v", st.State)
	}

	resp, _ = postJSON(t, base+"/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}
	_, body2 := get(t, base, "application/json")
	json.Unmarshal([]byte(body2), &st)
	if st.State.Status != playback.Stopped || st.State.StepIndex != 0 {
		t.Errorf("expected stopped at step 0 after reset, got %+v", st.State)
	}

	resp, body = postJSON(t, base+"/focus?t=3.2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("focus: status %d", resp.StatusCode)
	}
	json.Unmarshal(body, &st)
	if st.Focus == nil || st.Focus.Time != 3 || st.Focus.Value != 103 {
		t.Errorf("expected focus locked on t=3, got %+v", st.Focus)
	}
	_, body = postJSON(t, base+"/focus?t=5", "")
	st = sessionResponse{}
	json.Unmarshal(body, &st)
	if st.Focus != nil {
		t.Errorf("second focus should unlock, got %+v", st.Focus)
	}
	if resp, _ := postJSON(t, base+"/focus", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("focus without t: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = get(t, ts.URL+"/playback/missing", "application/json")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", resp.StatusCode)
	}

	resp, page := get(t, base, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(page, created.ID) {
		t.Errorf("expected playback page, got %d", resp.StatusCode)
	}
}

func TestPlaybackWebsocket(t *testing.T) {
	_, ts := newTestServer(t, testDataset())

	_, body := postJSON(t, ts.URL+"/playback", "subject=2_1")
	var created sessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/playback/" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["status"] != "stopped" {
		t.Fatalf("unexpected hello %v", hello)
	}

	if resp, _ := postJSON(t, ts.URL+"/playback/"+created.ID+"/start", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev["kind"] == "tick" {
			break
		}
	}
}

func TestEvictedSessionDropsViewers(t *testing.T) {
	s, _ := newTestServer(t, testDataset())
	samples := testDataset().SamplesFor("1_1")

	first, err := s.newSession("1_1", samples, nil)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	viewer := s.hub.Register(first.id)
	defer s.hub.Unregister(viewer)

	for i := 0; i < maxSessions; i++ {
		if _, err := s.newSession("1_1", samples, nil); err != nil {
			t.Fatalf("newSession %d: %v", i, err)
		}
	}

	if _, err := s.sessions.get(first.id); !errors.Is(err, errNotFound) {
		t.Fatalf("expected the oldest session evicted, got %v", err)
	}
	select {
	case _, ok := <-viewer.Send:
		if ok {
			t.Fatalf("expected viewer channel closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("viewer still attached to evicted session")
	}
	if n := s.hub.Clients(first.id); n != 0 {
		t.Fatalf("expected no viewers left, have %d", n)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrDataNotReady, http.StatusConflict},
		{&models.LoadError{Source: "x", Err: errors.New("boom")}, http.StatusBadGateway},
		{badRequest("bad"), http.StatusBadRequest},
		{&models.MissingDataError{Field: "speed"}, http.StatusUnprocessableEntity},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := label("age_group"); got != "Age Group" {
		t.Errorf("label = %q", got)
	}
	if got := label("overweight"); got != "Overweight" {
		t.Errorf("label = %q", got)
	}
}
