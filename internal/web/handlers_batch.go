package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voxsheet/voxsheet/internal/core"
)

// handleIndex serves the upload UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleCreateBatch accepts a multipart file upload, decodes it, and
// persists the resulting batch.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	blob, name, ok := s.readUploadedFile(w, r)
	if !ok {
		return
	}

	batch, err := s.service.CreateBatch(r.Context(), name, blob)
	if err != nil {
		if errors.Is(err, core.ErrNoRecords) {
			writeError(w, http.StatusUnprocessableEntity, "file contains no usable posts")
			return
		}
		slog.Error("batch create failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store batch")
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, batch)
}

// handlePreview decodes an uploaded file and returns the records that
// would be kept, without persisting anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	blob, _, ok := s.readUploadedFile(w, r)
	if !ok {
		return
	}

	records, dropped := s.service.PreviewDecode(blob)
	writeJSON(w, map[string]interface{}{
		"records": records,
		"kept":    len(records),
		"dropped": dropped,
	})
}

// readUploadedFile pulls the "file" part out of a size-capped multipart
// request. On failure it writes the error response and returns ok=false.
func (s *Server) readUploadedFile(w http.ResponseWriter, r *http.Request) (blob, name string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return "", "", false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return "", "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return "", "", false
	}

	name = header.Filename
	if n := r.FormValue("name"); n != "" {
		name = n
	}
	return string(data), name, true
}

// handleListBatches returns summaries of all stored batches.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches(r.Context())
	if err != nil {
		slog.Error("batch list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	writeJSON(w, map[string]interface{}{"batches": batches})
}

// handleGetBatch returns a batch with its posts and generation state.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	detail, err := s.service.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, core.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		slog.Error("batch fetch failed", "batch", batchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}
	writeJSON(w, detail)
}

// handleDeleteBatch removes a batch, its posts, and any generated audio.
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	if err := s.service.DeleteBatch(r.Context(), batchID); err != nil {
		if errors.Is(err, core.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		slog.Error("batch delete failed", "batch", batchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete batch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
