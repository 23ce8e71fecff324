// Package core provides the business logic for decoding post batches and
// generating spoken audio for them. This package has no UI dependencies
// and can be used by any frontend.
package core

import (
	"errors"
	"time"

	"github.com/voxsheet/voxsheet/internal/tabular"
)

// ErrBatchNotFound is returned when a batch ID does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// ErrJobNotFound is returned when a generation job ID does not exist.
var ErrJobNotFound = errors.New("generation job not found")

// ErrNoRecords is returned when a decode yields no records.
// Callers should surface this to the user; the decoder itself never fails.
var ErrNoRecords = errors.New("no usable records found in file")

// ErrNoSynthesizer is returned when generation is requested but no
// speech API key was configured.
var ErrNoSynthesizer = errors.New("speech synthesis is not configured")

// Batch is one decoded spreadsheet upload.
type Batch struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Header     []string  `json:"header"`
	UploadedAt time.Time `json:"uploaded_at"`
	Records    int       `json:"records"`
	Generated  int       `json:"generated"`
	Dropped    int       `json:"dropped"` // structurally incomplete rows filtered during decode
}

// GenStatus is the audio generation state of a single record.
type GenStatus string

const (
	GenPending    GenStatus = "pending"
	GenInProgress GenStatus = "generating"
	GenDone       GenStatus = "done"
	GenFailed     GenStatus = "failed"
)

// Post is one decoded record together with its generation state.
type Post struct {
	tabular.Record
	Status    GenStatus `json:"status"`
	AudioPath string    `json:"audio_path,omitempty"`
	GenError  string    `json:"gen_error,omitempty"`
}

// BatchDetail is a batch with all of its posts.
type BatchDetail struct {
	Batch
	Posts []Post `json:"posts"`
}

// JobPhase indicates the current stage of a generation job.
type JobPhase string

const (
	PhaseStarting     JobPhase = "starting"
	PhaseSynthesizing JobPhase = "synthesizing"
	PhaseComplete     JobPhase = "complete"
	PhaseFailed       JobPhase = "failed"
	PhaseCancelled    JobPhase = "cancelled"
)

// JobProgress represents the current state of a generation job.
type JobProgress struct {
	JobID     string   `json:"job_id"`
	BatchID   string   `json:"batch_id"`
	Phase     JobPhase `json:"phase"`
	RecordID  string   `json:"record_id,omitempty"` // record currently being synthesized
	Total     int      `json:"total"`
	Current   int      `json:"current"`
	Generated int      `json:"generated"`
	Failed    int      `json:"failed"`
	Error     string   `json:"error,omitempty"` // non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p JobProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Current * 100) / p.Total
}

// FailedRecord describes one record whose synthesis failed.
type FailedRecord struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// JobResult is the final outcome of a generation job.
type JobResult struct {
	JobID         string         `json:"job_id"`
	BatchID       string         `json:"batch_id"`
	Generated     int            `json:"generated"`
	Failed        int            `json:"failed"`
	FailedRecords []FailedRecord `json:"failed_records,omitempty"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"`
}
