package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/config"
	"github.com/hyperjump/knowling/internal/notebook"
	"github.com/hyperjump/knowling/internal/storage"
)

type noteRequest struct {
	Text string `json:"text"`
}

type categoryRequest struct {
	Label string `json:"label"`
}

type pathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.notebook.GetNotes(r.Context())
	if err != nil {
		s.respondFailure(w, "list notes", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notes": notes, "total": len(notes)})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	note, err := s.notebook.Upsert(r.Context(), "", req.Text)
	if err != nil {
		s.respondFailure(w, "create note", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := s.notebook.GetNoteByID(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get note", err)
		return
	}
	if note == nil {
		s.respondError(w, http.StatusNotFound, "note not found")
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	note, err := s.notebook.Upsert(r.Context(), id, req.Text)
	if err != nil {
		s.respondFailure(w, "update note", err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete note request", zap.String("id", id))
	if err := s.notebook.DeleteNote(r.Context(), id); err != nil {
		s.respondFailure(w, "delete note", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	note, err := s.notebook.AddCategoryToNote(r.Context(), chi.URLParam(r, "id"), req.Label)
	if err != nil {
		s.respondFailure(w, "add category", err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	note, err := s.notebook.RemoveCategoryFromNote(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "categoryID"))
	if err != nil {
		s.respondFailure(w, "remove category", err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleSimilarNotes(w http.ResponseWriter, r *http.Request) {
	var opts []notebook.SimilarOption
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts = append(opts, notebook.WithLimit(limit))
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 32)
		if err != nil || threshold < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		opts = append(opts, notebook.WithThreshold(float32(threshold)))
	}
	results, err := s.notebook.GetSimilarNotesByID(r.Context(), chi.URLParam(r, "id"), opts...)
	if err != nil {
		s.respondFailure(w, "similar notes", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "total": len(results)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	count, err := s.notebook.ImportNotes(r.Context(), req.Path)
	if err != nil {
		s.respondFailure(w, "import", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"imported": count})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	count, dir, err := s.notebook.ExportNotes(r.Context(), req.Path)
	if err != nil {
		s.respondFailure(w, "export", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"exported": count, "directory": dir})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.notebook.Reset(r.Context()); err != nil {
		s.respondFailure(w, "reset", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.notebook.Status(r.Context())
	if err != nil {
		s.respondFailure(w, "status", err)
		return
	}
	resp := map[string]interface{}{
		"notes":      status.Notes,
		"categories": status.Categories,
		"embeddings": status.Embeddings,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"database_path":        s.config.Storage.DatabasePath,
			"vector_index_path":    s.config.Storage.VectorIndexPath,
			"vector_index_type":    s.config.Vector.IndexType,
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"default_limit":        s.config.Similarity.DefaultLimit,
			"default_threshold":    s.config.Similarity.DefaultThreshold,
		}
		diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath, s.config.Storage.VectorIndexPath)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := false
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body pathRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondFailure maps notebook errors to HTTP status codes.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, notebook.ErrNoteNotFound):
		status = http.StatusNotFound
	case errors.Is(err, notebook.ErrInvalidCategory), errors.Is(err, notebook.ErrFileAccess):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
