// Package server exposes registered pipelines over HTTP: trigger runs,
// list and fetch archived records.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stagehand-ci/stagehand/internal/engine"
	"github.com/stagehand-ci/stagehand/internal/history"
	"github.com/stagehand-ci/stagehand/internal/pipeline"
	"github.com/stagehand-ci/stagehand/internal/report"
)

// Server runs pipelines on request and serves their archived records.
type Server struct {
	eng       *engine.Engine
	store     *history.Store
	docs      map[string]*pipeline.Document
	workspace string
	l         *slog.Logger
	now       func() time.Time
}

// New wires a server from its collaborators. docs maps pipeline name to
// document; the workspace is the root directory runs execute in.
func New(eng *engine.Engine, store *history.Store, docs map[string]*pipeline.Document, workspace string, l *slog.Logger) *Server {
	return &Server{
		eng:       eng,
		store:     store,
		docs:      docs,
		workspace: workspace,
		l:         l,
		now:       time.Now,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/pipelines", s.handleListPipelines)
	r.Post("/pipelines/{name}/runs", s.handleTriggerRun)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": names})
}

type triggerRequest struct {
	Branch string `json:"branch"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc, ok := s.docs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pipeline %q", name)
		return
	}

	var req triggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "decode request: %v", err)
			return
		}
	}

	build, err := s.store.NextBuildNumber(name)
	if err != nil {
		s.l.Error("allocate build number", "pipeline", name, "err", err)
		writeError(w, http.StatusInternalServerError, "allocate build number")
		return
	}

	meta := report.Metadata{
		RunID:       uuid.NewString(),
		BuildNumber: build,
		Branch:      req.Branch,
		Workspace:   s.workspace,
		StartedAt:   s.now(),
	}

	s.l.Info("triggering run", "pipeline", name, "run", meta.RunID, "branch", meta.Branch)
	rec, err := s.eng.Run(r.Context(), doc, meta)
	if err != nil {
		s.l.Error("run aborted", "pipeline", name, "run", meta.RunID, "err", err)
	}

	if err := s.store.Save(rec, doc.Options.Retain); err != nil {
		s.l.Error("archive run", "run", rec.RunID, "err", err)
	}

	status := http.StatusOK
	if rec.Status == report.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, rec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}
		limit = n
	}

	recs, err := s.store.List(r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		s.l.Error("list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": recs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run %q not found", id)
			return
		}
		s.l.Error("get run", "run", id, "err", err)
		writeError(w, http.StatusInternalServerError, "get run")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
