package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voxsheet/voxsheet/internal/core"
)

type generateRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// handleGenerate starts a generation job for a batch. An empty or
// missing record_ids list generates audio for every post in the batch.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	jobID, err := s.service.StartGeneration(r.Context(), batchID, req.RecordIDs)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrBatchNotFound):
			writeError(w, http.StatusNotFound, "batch not found")
		case errors.Is(err, core.ErrNoSynthesizer):
			writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		case errors.Is(err, core.ErrTooManyJobs):
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusTooManyRequests, "too many generation jobs in progress")
		default:
			slog.Error("generation start failed", "batch", batchID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start generation")
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{
		"job_id":   jobID,
		"batch_id": batchID,
	})
}

// handleJobProgress streams generation progress as Server-Sent Events.
// Clients that reconnect send Last-Event-ID; updates at or before that
// point are suppressed so the client never sees a duplicate.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	updates, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastSeen := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastSeen = n
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case progress, open := <-updates:
			if !open {
				return
			}
			if progress.Current <= lastSeen && progress.Phase == core.PhaseSynthesizing {
				continue
			}
			if err := writeSSE(w, progress.Current, progress); err != nil {
				slog.Debug("progress stream write failed", "job", jobID, "error", err)
				return
			}
			flusher.Flush()
			lastSeen = progress.Current
		}
	}
}

// writeSSE writes one event in text/event-stream framing.
func writeSSE(w http.ResponseWriter, id int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", id, data)
	return err
}

// handleJobResult returns the outcome of a job, blocking until it
// finishes. The client should only call this after progress reports a
// terminal phase, but blocking keeps early callers correct.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	result, err := s.service.GetJobResult(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, result)
}

// handleCancelJob cancels an in-progress job. Audio already generated
// is kept.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.service.CancelJob(jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	progress, _ := s.service.GetJobProgress(jobID)
	writeJSON(w, map[string]interface{}{
		"cancelled": true,
		"progress":  progress,
	})
}

// handleStatus reports limiter occupancy for monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"limiter": s.service.JobLimiterStatus(),
	})
}
