package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/kbchat/internal/pipeline"
	"github.com/dgallion1/kbchat/internal/sidebar"
)

// handleKnowledgeBase serves the knowledge base directory the browser reads
// directly: the manifest and the text extracts.
func (s *Server) handleKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if !validEntryName(name) {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}
	path := filepath.Join(s.pipeline.Dir(), name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case name == filepath.Base(s.pipeline.ManifestPath()):
		// The manifest is rewritten on every run.
		w.Header().Set("Cache-Control", "no-store")
	case strings.HasSuffix(name, pipeline.ExtractSuffix):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	http.ServeFile(w, r, path)
}

// handleListFiles returns the sidebar listing built from the manifest. A
// missing or unreadable manifest lists no files.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.pipeline.ReadManifest()
	if err != nil {
		s.log.Warn("manifest unavailable", "error", err)
		names = nil
	}
	files := sidebar.Entries(names)
	writeJSON(w, http.StatusOK, map[string]any{
		"files":       files,
		"placeholder": sidebar.Placeholder(files),
	})
}

// handleGetFile returns the text of one extract.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validEntryName(name) || !strings.HasSuffix(name, pipeline.ExtractSuffix) {
		jsonError(w, "invalid extract name", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(filepath.Join(s.pipeline.Dir(), name))
	if errors.Is(err, os.ErrNotExist) {
		jsonError(w, "extract not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("failed to read extract", "extract", name, "error", err)
		jsonError(w, "failed to read extract", http.StatusInternalServerError)
		return
	}

	content := string(data)
	if content == "" {
		content = sidebar.NoContentText
	}
	f := sidebar.Entries([]string{name})[0]
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        f.Name,
		"actual_name": f.ActualName,
		"content":     content,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.pipeline.Latest()
	if !ok {
		jsonError(w, "no pipeline run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.pipeline.Runs()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, ok := s.pipeline.GetRun(runID)
	if !ok {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRebuild runs the pipeline synchronously and returns its report.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Run(r.Context(), pipeline.TriggerAPI)
	if errors.Is(err, context.Canceled) {
		jsonError(w, "request cancelled before the run started", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": err.Error(),
			"run":   snap,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// validEntryName accepts plain, visible file names inside the knowledge base.
func validEntryName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		name == filepath.Base(name)
}
