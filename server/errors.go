package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pacelab/models"
	"github.com/pacelab/templates"
)

// badRequestError marks errors caused by the request itself.
type badRequestError struct {
	Err error
}

func (e *badRequestError) Error() string { return e.Err.Error() }
func (e *badRequestError) Unwrap() error { return e.Err }

func badRequest(format string, args ...any) error {
	return &badRequestError{Err: fmt.Errorf(format, args...)}
}

// conflictError is an action that is not valid in the current playback state.
type conflictError struct {
	Err error
}

func (e *conflictError) Error() string { return e.Err.Error() }
func (e *conflictError) Unwrap() error { return e.Err }

var errNotFound = errors.New("not found")

func statusFor(err error) int {
	var (
		loadErr     *models.LoadError
		badReq      *badRequestError
		conflict    *conflictError
		missingData *models.MissingDataError
	)
	switch {
	case errors.Is(err, models.ErrDataNotReady), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &loadErr):
		return http.StatusBadGateway
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &missingData):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Printf("%s %s: %d %v", r.Method, r.URL.Path, status, err)
	templ.Handler(templates.Error(err.Error()), templ.WithStatus(status)).ServeHTTP(w, r)
}

func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Printf("%s %s: %d %v", r.Method, r.URL.Path, status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
