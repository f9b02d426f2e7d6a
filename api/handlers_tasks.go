package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ByLCY/scribe/layout"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
	"github.com/ByLCY/scribe/synth"
)

// documentRequest is the body of submit and preview calls. Template names a
// built-in markup used when Markup is empty.
type documentRequest struct {
	Markup   string                 `json:"markup"`
	Template string                 `json:"template,omitempty"`
	Data     map[string]any         `json:"data,omitempty"`
	Config   *layout.DocumentConfig `json:"config,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Format   string                 `json:"format,omitempty"`
	Title    string                 `json:"title,omitempty"`
}

func (d documentRequest) toRequest() (synth.Request, error) {
	markup := d.Markup
	if strings.TrimSpace(markup) == "" && d.Template != "" {
		m, err := synth.LoadTemplate(d.Template)
		if err != nil {
			return synth.Request{}, err
		}
		markup = m
	}
	req := synth.Request{
		Markup: markup,
		Config: d.Config,
		Name:   sanitizeName(d.Name),
		Format: canvasrenderer.Format(d.Format),
		Title:  d.Title,
	}
	if d.Data != nil {
		req.Data = d.Data
	}
	return req, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body documentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Format != "" {
		if _, err := canvasrenderer.ParseFormat(body.Format); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.orch.Submit(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":    snap.ID,
		"status":     snap.Status,
		"status_url": fmt.Sprintf("/api/tasks/%s", snap.ID),
		"events_url": fmt.Sprintf("/api/tasks/%s/events", snap.ID),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.List()
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Get(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Cancel(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body documentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.orch.Preview(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("layout") != "true" {
		res.Layout = nil
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": synth.Templates()})
}

// sanitizeName keeps artifact base names to a single path element.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
	return name
}
