// Package server provides the collector's optional HTTP surface:
// liveness checks and a log-tail endpoint over the current log file.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Server exposes health and log-tail endpoints while a collector run
// is active.
type Server struct {
	port    uint16
	logFile string
}

// New constructs a Server bound to port, tailing logFile for the
// /logs endpoint. logFile may be empty, in which case /logs reports
// that no log file is configured.
func New(port uint16, logFile string) *Server {
	return &Server{port: port, logFile: logFile}
}

// Start registers all route handlers, wraps the mux in the logging
// middleware, and begins listening. It blocks until the server
// returns an error.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			s.handleHealth(w, r)
			return
		}
		http.NotFound(w, r)
	})

	handler := loggingMiddleware(mux)

	log.Printf("agentsight server starting on port %d", s.port)
	log.Printf("Endpoints: http://localhost:%d/health, http://localhost:%d/logs", s.port, s.port)
	return http.ListenAndServe(fmt.Sprintf(":%d", s.port), handler)
}

// handleHealth returns a simple JSON status payload for liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
		"status":  "ok",
		"service": "agentsight",
	})
}

// handleLogs returns the current contents of the configured log file.
// If no log file is configured, it reports a 404 rather than guessing
// a path.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logFile == "" {
		http.Error(w, "no log file configured", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(s.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "log file not yet created", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read log file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Write(data) //nolint:errcheck
}

// loggingMiddleware logs the method, path, remote address, and
// elapsed time for every request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("<- %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("-> %s %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
