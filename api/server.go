// Package api exposes the synthesis orchestrator over HTTP and streams task
// progress over WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ByLCY/scribe/artifact"
	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/regen"
	"github.com/ByLCY/scribe/style"
	"github.com/ByLCY/scribe/synth"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// Server is the HTTP API server for scribe.
type Server struct {
	router chi.Router
	orch   *synth.Orchestrator
	log    *slog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *synth.Orchestrator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{orch: orch, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", s.handleTemplates)
		r.Post("/preview", s.handlePreview)

		r.Post("/tasks", s.handleSubmit)
		r.Get("/tasks", s.handleListTasks)
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Post("/cancel", s.handleCancel)
			r.Get("/events", s.handleEvents)

			r.Get("/artifacts", s.handleListArtifacts)
			r.Get("/artifacts/{name}", s.handleDownload)

			r.Get("/words/{wordID}/versions", s.handleVersions)
			r.Post("/words/{wordID}/regenerate", s.handleRegenerate)
			r.Post("/words/{wordID}/select", s.handleSelect)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orch.QueueDepth(),
		"cache":       s.orch.CacheStats(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var terr *synth.TaskError
	if errors.As(err, &terr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"detail": terr.Info(),
		})
		return
	}
	var serr *style.StyleError
	var gerr *generator.GenerationError
	switch {
	case errors.As(err, &serr),
		errors.Is(err, regen.ErrInvalidCount),
		errors.Is(err, artifact.ErrInvalidName):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, synth.ErrTaskNotFound),
		errors.Is(err, synth.ErrTemplateNotFound),
		errors.Is(err, regen.ErrUnknownWord),
		errors.Is(err, regen.ErrUnknownVersion),
		errors.Is(err, artifact.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, synth.ErrNotCompleted):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, synth.ErrQueueFull), errors.Is(err, synth.ErrStopped):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &gerr):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
