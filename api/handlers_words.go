package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ByLCY/scribe/regen"
	"github.com/ByLCY/scribe/style"
)

type regenerateRequest struct {
	Attempts int             `json:"attempts"`
	Override *style.Override `json:"override,omitempty"`
}

type selectRequest struct {
	Version int `json:"version"`
}

func wordParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "wordID"))
	if err != nil || id < 0 {
		jsonError(w, "word id must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	wordID, ok := wordParam(w, r)
	if !ok {
		return
	}
	versions, err := s.orch.Versions(chi.URLParam(r, "taskID"), wordID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"word_id": wordID, "versions": versions})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	wordID, ok := wordParam(w, r)
	if !ok {
		return
	}
	body := regenerateRequest{Attempts: regen.DefaultAttempts}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	versions, err := s.orch.Regenerate(r.Context(), chi.URLParam(r, "taskID"), wordID, body.Override, body.Attempts)
	if err != nil {
		if len(versions) > 0 {
			// partial success keeps the candidates already stored
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":    err.Error(),
				"versions": versions,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"word_id": wordID, "versions": versions})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	wordID, ok := wordParam(w, r)
	if !ok {
		return
	}
	var body selectRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	out, err := s.orch.Select(r.Context(), chi.URLParam(r, "taskID"), wordID, body.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
