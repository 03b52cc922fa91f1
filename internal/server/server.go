// Package server provides the event sources feeding the orchestrator: a
// webhook HTTP endpoint for push/pull_request deliveries and a ticker
// emitting schedule events. Both publish onto the same event channel.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/latch-ci/latch/internal/types"
)

// webhookPayload is the accepted body of an event delivery.
type webhookPayload struct {
	Ref        string `json:"ref"`
	Repository string `json:"repository"`
}

// Server accepts webhook deliveries and turns them into events.
type Server struct {
	events chan<- types.Event
	logger *slog.Logger
	router chi.Router
}

// New creates a webhook server publishing to the given channel.
func New(events chan<- types.Event, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		events: events,
		logger: logger.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/events/{kind}", s.handleEvent)
	r.Get("/healthz", s.handleHealth)
	s.router = r

	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the webhook endpoint on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("webhook server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	kind := types.EventKind(chi.URLParam(r, "kind"))
	if !kind.Valid() || kind == types.EventSchedule {
		http.Error(w, "unknown event kind", http.StatusBadRequest)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Ref == "" {
		http.Error(w, "missing ref", http.StatusBadRequest)
		return
	}

	event := types.Event{
		Kind:       kind,
		Ref:        payload.Ref,
		Repository: payload.Repository,
		Time:       time.Now(),
	}

	select {
	case s.events <- event:
		s.logger.Info("event accepted", "kind", kind, "ref", payload.Ref)
		w.WriteHeader(http.StatusAccepted)
	default:
		s.logger.Warn("event queue full, delivery dropped", "kind", kind)
		http.Error(w, "event queue full", http.StatusServiceUnavailable)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
