package server

import (
	"log"
	"net/http"
	"time"
)

// loggingMiddleware leaves the ResponseWriter unwrapped so websocket upgrades
// can still hijack the connection.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("Endpoint: %s, Method: %s, Took: %s", r.URL.Path, r.Method, time.Since(start))
	})
}
