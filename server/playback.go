package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pacelab/analysis"
	"github.com/pacelab/loader"
	"github.com/pacelab/models"
	"github.com/pacelab/playback"
	"github.com/pacelab/templates"
)

const (
	maxSessions = 64
	maxFITSize  = 32 << 20
)

type session struct {
	id          string
	subjectID   string
	duration    float64
	created     time.Time
	controller  *playback.Controller
	unsubscribe func()
	// disconnect drops the session's websocket viewers.
	disconnect func()

	// focus is the locked heart-rate marker on the replay chart.
	focusMu sync.Mutex
	focus   analysis.FocusLock
	hr      *analysis.NearestIndex
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*session{}}
}

// add stores sess, closing the oldest session once the registry is full.
func (reg *sessionRegistry) add(sess *session) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for len(reg.order) >= maxSessions {
		oldest := reg.sessions[reg.order[0]]
		reg.order = reg.order[1:]
		delete(reg.sessions, oldest.id)
		oldest.close()
		log.Printf("Evicted playback session %s", oldest.id)
	}
	reg.sessions[sess.id] = sess
	reg.order = append(reg.order, sess.id)
}

func (reg *sessionRegistry) get(id string) (*session, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	sess, ok := reg.sessions[id]
	if !ok {
		return nil, fmt.Errorf("playback session %q: %w", id, errNotFound)
	}
	return sess, nil
}

func (reg *sessionRegistry) closeAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, sess := range reg.sessions {
		sess.close()
	}
	reg.sessions = map[string]*session{}
	reg.order = nil
}

func (sess *session) close() {
	sess.unsubscribe()
	sess.controller.Close()
	if sess.disconnect != nil {
		sess.disconnect()
	}
}

// markersFor uses the subject's detected thresholds when the dataset has
// them and the configured defaults otherwise.
func (s *Server) markersFor(d *models.Dataset, subjectID string) []playback.Marker {
	vt1, vt2 := s.cfg.VT1Time, s.cfg.VT2Time
	if d != nil {
		for _, th := range d.ThresholdsFor(subjectID) {
			switch th.Threshold {
			case 1:
				vt1 = th.Time
			case 2:
				vt2 = th.Time
			}
		}
	}
	return playback.PhaseMarkers(vt1, vt2)
}

// newSession builds a controller over samples and forwards its events to the hub.
func (s *Server) newSession(subjectID string, samples []models.Sample, markers []playback.Marker) (*session, error) {
	if len(samples) == 0 {
		return nil, models.ErrDataNotReady
	}
	cfg := playback.Config{
		TickInterval: s.cfg.TickInterval(),
		SpeedFactor:  s.cfg.SpeedFactor,
		Markers:      markers,
	}
	ctrl, err := playback.NewController(cfg, samples)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sess := &session{
		id:         id,
		subjectID:  subjectID,
		duration:   ctrl.State().TotalDuration,
		created:    time.Now(),
		controller: ctrl,
		hr:         analysis.NewNearestIndex(heartRateSeries(samples)),
	}
	sess.unsubscribe = ctrl.Subscribe(func(ev playback.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Failed to encode playback event: %v", err)
			return
		}
		s.hub.Broadcast(id, payload)
	})
	sess.disconnect = func() { s.hub.CloseSession(id) }
	s.sessions.add(sess)
	log.Printf("Created playback session %s for %s (%d samples)", id, subjectID, len(samples))
	return sess, nil
}

func heartRateSeries(samples []models.Sample) []models.TimeValue {
	out := make([]models.TimeValue, 0, len(samples))
	for _, smp := range samples {
		if !math.IsNaN(smp.HR) {
			out = append(out, models.TimeValue{Time: smp.Time, Value: smp.HR})
		}
	}
	return out
}

// toggleFocus locks the marker onto the sample nearest t, or releases it.
func (sess *session) toggleFocus(t float64) {
	sess.focusMu.Lock()
	defer sess.focusMu.Unlock()
	sess.focus.Toggle(sess.hr, t)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

type sessionResponse struct {
	ID      string            `json:"id"`
	Subject string            `json:"subject"`
	State   playback.State    `json:"state"`
	Focus   *models.TimeValue `json:"focus,omitempty"`
}

func (sess *session) response() sessionResponse {
	resp := sessionResponse{ID: sess.id, Subject: sess.subjectID, State: sess.controller.State()}
	sess.focusMu.Lock()
	if p, ok := sess.focus.Locked(); ok {
		resp.Focus = &p
	}
	sess.focusMu.Unlock()
	return resp
}

func (s *Server) respondCreated(w http.ResponseWriter, r *http.Request, sess *session) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, sess.response())
		return
	}
	http.Redirect(w, r, "/playback/"+sess.id, http.StatusSeeOther)
}

func (s *Server) createPlaybackHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Ready()
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		jsonError(w, r, badRequest("failed to parse form: %v", err))
		return
	}
	subject := strings.TrimSpace(r.FormValue("subject"))
	if subject == "" {
		jsonError(w, r, badRequest("subject is required"))
		return
	}
	samples := d.SamplesFor(subject)
	if len(samples) == 0 {
		jsonError(w, r, fmt.Errorf("test %q: %w", subject, errNotFound))
		return
	}

	sess, err := s.newSession(subject, samples, s.markersFor(d, subject))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	s.respondCreated(w, r, sess)
}

// importFITHandler starts a session over a FIT recording posted as the request body.
func (s *Server) importFITHandler(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		subject = "fit-" + time.Now().Format("20060102-150405")
	}

	samples, err := loader.ParseFIT(io.LimitReader(r.Body, maxFITSize), subject)
	if err != nil {
		jsonError(w, r, &badRequestError{Err: err})
		return
	}
	sess, err := s.newSession(subject, samples, s.markersFor(nil, subject))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	s.respondCreated(w, r, sess)
}

func (s *Server) playbackHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		if wantsJSON(r) {
			jsonError(w, r, err)
		} else {
			pageError(w, r, err)
		}
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, sess.response())
		return
	}

	html, err := renderChart(generatePlaybackChart(sess.subjectID, sess.duration))
	if err != nil {
		pageError(w, r, err)
		return
	}
	render(w, r, templates.Playback(sess.id, sess.subjectID, html))
}

func (s *Server) playbackActionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}

	ctrl := sess.controller
	switch action := r.PathValue("action"); action {
	case "start":
		err = ctrl.Start()
	case "pause":
		ctrl.Pause()
	case "resume":
		if err = ctrl.Resume(); err != nil {
			err = &conflictError{Err: err}
		}
	case "ack", "acknowledge":
		if err = ctrl.Acknowledge(); err != nil {
			err = &conflictError{Err: err}
		}
	case "reset":
		ctrl.Reset()
	case "focus":
		var t *float64
		if t, err = optionalFloat(r, "t"); err == nil {
			if t == nil {
				err = badRequest("focus requires t")
			} else {
				sess.toggleFocus(*t)
			}
		}
	default:
		err = badRequest("unknown playback action %q", action)
	}
	if err != nil {
		jsonError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.response())
}

// playbackStreamHandler greets each viewer with the current state so a late
// joiner can draw the clock before the next tick.
func (s *Server) playbackStreamHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}

	st := sess.controller.State()
	hello, err := json.Marshal(playback.Event{
		Kind:   playback.EventStateChanged,
		Time:   st.CurrentVirtualTime,
		Step:   st.StepIndex,
		Status: st.Status,
	})
	if err != nil {
		log.Printf("Failed to encode hello: %v", err)
		hello = nil
	}
	s.hub.ServeWS(w, r, sess.id, hello)
}
