// Package server exposes a node's control plane over HTTP with a
// chi-router-plus-handler-funcs shape.
package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"

	"ringlog/internal/domain"
	"ringlog/internal/platform/ltb"
)

// Server is the node's REST control plane.
type Server struct {
	httpAddr string
	engine   *chi.Mux
	sub      *ltb.Subsystem
}

// NewServer wires the router: format the listen address, then register
// routes.
func NewServer(host string, port int, sub *ltb.Subsystem) Server {
	srv := Server{
		engine:   chi.NewRouter(),
		httpAddr: fmt.Sprintf("%s:%d", host, port),
		sub:      sub,
	}
	srv.engine.Use(middleware.Logger)
	srv.registerRoutes()
	return srv
}

func (s *Server) Run() error {
	log.Println("Server Running on:", s.httpAddr)
	return http.ListenAndServe(s.httpAddr, s.engine)
}

func (s *Server) registerRoutes() {
	s.engine.Get("/health", s.checkHealth)
	s.engine.Get("/pool/stats", s.poolStats)
	s.engine.Post("/pool/publish", s.poolPublish)
}

func (s *Server) checkHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// poolStats reports the subsystem's current view of its own state,
// recovered from data_pool.c's debug-only dpool_print.
func (s *Server) poolStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sub.Stats())
}

// poolPublish triggers an out-of-band publish pass and waits up to ten
// seconds for it to reach a terminal branch, mirroring the semantics
// ltb.Subsystem.ForcePublish documents for REST-triggered requests.
func (s *Server) poolPublish(w http.ResponseWriter, r *http.Request) {
	done := make(chan error, 1)
	if err := s.sub.ForcePublish(func(err error) { done <- err }); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	select {
	case err := <-done:
		if err == domain.ErrPublishInProgress {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
	case <-time.After(10 * time.Second):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "in-progress"})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
