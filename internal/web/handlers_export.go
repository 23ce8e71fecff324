package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voxsheet/voxsheet/internal/core"
)

// handleAudio serves a single generated WAV clip.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	recordID := chi.URLParam(r, "recordID")

	data, err := s.service.AudioClip(batchID, recordID)
	if err != nil {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// handleExportArchive streams a zip of the batch: generated audio,
// per-post transcripts, and a manifest.
func (s *Server) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	detail, err := s.service.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, core.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		slog.Error("export fetch failed", "batch", batchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", core.ArchiveName(detail.Batch)))

	if err := s.service.WriteArchive(r.Context(), w, batchID); err != nil {
		// Headers are already sent, the client sees a truncated zip.
		slog.Error("archive write failed", "batch", batchID, "error", err)
	}
}

// handleExportTranscripts returns the batch manifest as a delimited
// text download, round-trippable through the decoder.
func (s *Server) handleExportTranscripts(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	detail, err := s.service.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, core.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		slog.Error("transcript fetch failed", "batch", batchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}

	base := strings.TrimSuffix(detail.Name, ".csv")
	if base == "" {
		base = detail.ID
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", base+"-transcripts.csv"))
	fmt.Fprint(w, s.service.TranscriptCSV(detail))
}
