package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, err := s.orch.Get(taskID); err != nil {
		writeError(w, err)
		return
	}
	names, err := s.orch.Artifacts(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "artifacts": names})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	name := chi.URLParam(r, "name")
	data, contentType, err := s.orch.Download(r.Context(), taskID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
