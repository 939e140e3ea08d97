// Package server is the HTTP surface: chart pages, the JSON lookup API and
// the playback sessions with their websocket streams.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/pacelab/analysis"
	"github.com/pacelab/config"
	"github.com/pacelab/models"
	"github.com/pacelab/stream"
)

type Server struct {
	cfg      config.Config
	store    *models.DataStore
	hub      *stream.Hub
	sessions *sessionRegistry
	mux      *http.ServeMux

	binsMu      sync.Mutex
	binsDataset *models.Dataset
	bins        map[string]models.PerformanceBin
}

func New(cfg config.Config, store *models.DataStore, hub *stream.Hub) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		sessions: newSessionRegistry(),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	fs := http.FileServer(http.Dir("static"))
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	s.mux.HandleFunc("GET /{$}", s.indexHandler)
	s.mux.HandleFunc("GET /demographic", s.demographicHandler)
	s.mux.HandleFunc("GET /timeseries", s.timeSeriesHandler)
	s.mux.HandleFunc("GET /thresholds", s.thresholdsHandler)
	s.mux.HandleFunc("GET /similar", s.similarHandler)
	s.mux.HandleFunc("GET /export.png", s.exportHandler)

	s.mux.HandleFunc("GET /api/nearest", s.nearestHandler)

	s.mux.HandleFunc("POST /playback", s.createPlaybackHandler)
	s.mux.HandleFunc("POST /playback/fit", s.importFITHandler)
	s.mux.HandleFunc("GET /playback/{id}", s.playbackHandler)
	s.mux.HandleFunc("POST /playback/{id}/{action}", s.playbackActionHandler)
	s.mux.HandleFunc("GET /ws/playback/{id}", s.playbackStreamHandler)
}

func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		s.Close()
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return err
	}
	if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops every playback timer.
func (s *Server) Close() {
	s.sessions.closeAll()
}

// performanceBins returns the quartile bins of the current dataset, computed
// once per loaded dataset.
func (s *Server) performanceBins(d *models.Dataset) map[string]models.PerformanceBin {
	s.binsMu.Lock()
	defer s.binsMu.Unlock()
	if s.binsDataset == d && s.bins != nil {
		return s.bins
	}

	bins, err := analysis.ComputeBins(d.Samples, d.Subjects)
	if err != nil {
		log.Printf("Performance bins incomplete: %v", err)
	}
	s.binsDataset, s.bins = d, bins
	return bins
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c).ServeHTTP(w, r)
}
