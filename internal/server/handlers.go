package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/pkg/schema"
)

const defaultActivityLimit = 20

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controllerFrom(r).Status())
}

// handleUpload runs the pipeline on the multipart "file" field. The request
// blocks until the diagram is ready or the run fails.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, fmt.Sprintf("multipart field \"file\" is required: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, fmt.Sprintf("read upload: %v", err))
		return
	}

	if err := ctrl.Submit(r.Context(), schema.NewFileSource(header.Filename, data)); err != nil {
		snap := ctrl.Status()
		writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)

	var body struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := ctrl.Submit(r.Context(), schema.NewTextSource(body.Description)); err != nil {
		snap := ctrl.Status()
		writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

// handleSource replaces the diagram source. A render failure answers 422
// with the state, which still carries the previous diagram.
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)

	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := ctrl.Edit(r.Context(), body.Source); err != nil {
		snap := ctrl.Status()
		writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)
	ctrl.Reset(r.Context())
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)
	if err := ctrl.Cancel(r.Context()); err != nil {
		snap := ctrl.Status()
		writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

// handleExport streams the artifact. ?inline=1 serves it for display
// instead of download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := schema.ParseExportFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	art, err := controllerFrom(r).Export(r.Context(), format)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	disposition := "attachment"
	if r.URL.Query().Get("inline") == "1" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", art.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, art.FileName))
	w.Header().Set("Cache-Control", "no-store")
	if art.Width > 0 {
		w.Header().Set("X-Image-Size", fmt.Sprintf("%dx%d", art.Width, art.Height))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Bytes)
}

// handleActivity lists the activity log newest first. Query params:
// limit, tool, since (RFC 3339) and where (an activity filter expression).
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Activity == nil {
		writeJSON(w, http.StatusOK, []*schema.Activity{})
		return
	}

	q := r.URL.Query()
	limit := queryInt(r, "limit", defaultActivityLimit)
	filter := store.ActivityFilter{Tool: q.Get("tool")}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, fmt.Sprintf("since: %v", err))
			return
		}
		filter.Since = &since
	}

	where, err := activity.NewFilter(q.Get("where"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if where.String() == "" {
		filter.Limit = limit
	}

	list, err := s.cfg.Activity.ListActivities(r.Context(), filter)
	if err != nil {
		writeError(w, schema.NewError(schema.ErrCodeStore, "list activities").WithCause(err), nil)
		return
	}
	list, err = where.Apply(list)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []*schema.Activity{}
	}
	writeJSON(w, http.StatusOK, list)
}
