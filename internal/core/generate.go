package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxsheet/voxsheet/internal/audio"
)

// jobRetention is how long finished jobs stay queryable after completion.
const jobRetention = 5 * time.Minute

// StartGeneration begins an asynchronous audio generation job for the
// given records of a batch. An empty recordIDs slice selects every record
// in the batch. Returns the job ID immediately; use SubscribeProgress for
// updates.
//
// Returns ErrTooManyJobs if the concurrent job limit is reached and no
// slot becomes available within the timeout period.
func (s *Service) StartGeneration(ctx context.Context, batchID string, recordIDs []string) (string, error) {
	if s.synth == nil {
		return "", ErrNoSynthesizer
	}

	detail, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}

	posts := selectPosts(detail.Posts, recordIDs)
	if len(posts) == 0 {
		return "", fmt.Errorf("no matching records in batch %s", batchID)
	}

	// Acquire a job slot (blocks until available or timeout)
	if err := s.jobLimiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Generate.Timeout)

	job := &activeJob{
		ID:      jobID,
		BatchID: batchID,
		Cancel:  cancel,
		Progress: JobProgress{
			JobID:   jobID,
			BatchID: batchID,
			Phase:   PhaseStarting,
			Total:   len(posts),
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.jobLimiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in generation job",
					"job_id", jobID,
					"batch_id", batchID,
					"panic", r,
				)
				job.updateProgress(func(p *JobProgress) {
					p.Phase = PhaseFailed
					p.Error = fmt.Sprintf("internal error: %v", r)
				})
				job.closeListeners()
				close(job.Done)
				s.cleanup(jobID, jobRetention)
			}
		}()
		s.runJob(jobCtx, job, posts)
	}()

	return jobID, nil
}

// runJob synthesizes audio for each post sequentially, pausing the
// configured delay between speech API calls. The delay applies between
// calls, not before the first one.
func (s *Service) runJob(ctx context.Context, job *activeJob, posts []Post) {
	startTime := time.Now()
	schema := s.Schema()

	defer func() {
		job.closeListeners()
		close(job.Done)
		s.cleanup(job.ID, jobRetention)
	}()

	result := &JobResult{JobID: job.ID, BatchID: job.BatchID}

	job.updateProgress(func(p *JobProgress) {
		p.Phase = PhaseSynthesizing
	})

	for i, post := range posts {
		if ctx.Err() != nil {
			s.finishJob(job, result, PhaseCancelled, "cancelled", startTime)
			return
		}

		if i > 0 && s.cfg.Generate.CallDelay > 0 {
			select {
			case <-time.After(s.cfg.Generate.CallDelay):
			case <-ctx.Done():
				s.finishJob(job, result, PhaseCancelled, "cancelled", startTime)
				return
			}
		}

		recordID := post.ID
		job.updateProgress(func(p *JobProgress) {
			p.RecordID = recordID
			p.Current = i
		})

		s.markGenerating(ctx, job.BatchID, post.ID)

		path, err := s.synthesizeOne(ctx, job.BatchID, post.ID, post.Body(schema))
		if err != nil {
			// A single failed record degrades, it does not abort the job.
			result.Failed++
			result.FailedRecords = append(result.FailedRecords, FailedRecord{
				RecordID: post.ID,
				Reason:   err.Error(),
			})
			failed := result.Failed
			job.updateProgress(func(p *JobProgress) {
				p.Failed = failed
			})
			s.markFailed(ctx, job.BatchID, post.ID, err)
			slog.Warn("synthesis failed",
				"job_id", job.ID,
				"record_id", post.ID,
				"error", err,
			)
			continue
		}

		result.Generated++
		generated := result.Generated
		job.updateProgress(func(p *JobProgress) {
			p.Generated = generated
		})
		s.markDone(ctx, job.BatchID, post.ID, path)
	}

	job.updateProgress(func(p *JobProgress) {
		p.Current = len(posts)
	})
	s.finishJob(job, result, PhaseComplete, "", startTime)

	slog.Info("generation job finished",
		"job_id", job.ID,
		"batch_id", job.BatchID,
		"generated", result.Generated,
		"failed", result.Failed,
		"duration", result.Duration,
	)
}

// synthesizeOne calls the speech API for one text, wraps the PCM result
// in a WAV container, and saves it to the audio store.
func (s *Service) synthesizeOne(ctx context.Context, batchID, recordID, text string) (string, error) {
	clip, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	wav := audio.WrapPCM(clip.PCM, audio.Format{
		SampleRate: clip.SampleRate,
		Channels:   1,
		BitDepth:   16,
	})
	return s.store.Save(batchID, recordID, wav)
}

// finishJob records the final phase and result of a job.
func (s *Service) finishJob(job *activeJob, result *JobResult, phase JobPhase, errMsg string, startTime time.Time) {
	result.Duration = time.Since(startTime)
	result.Error = errMsg
	job.Result = result
	job.updateProgress(func(p *JobProgress) {
		p.Phase = phase
		p.Error = errMsg
		p.RecordID = ""
	})
}

// markGenerating upserts a record's generation row to the in-progress state.
func (s *Service) markGenerating(ctx context.Context, batchID, recordID string) {
	s.upsertGeneration(ctx, batchID, recordID, GenInProgress, "", "")
}

// markDone upserts a record's generation row to the done state.
func (s *Service) markDone(ctx context.Context, batchID, recordID, path string) {
	s.upsertGeneration(ctx, batchID, recordID, GenDone, path, "")
}

// markFailed upserts a record's generation row to the failed state.
func (s *Service) markFailed(ctx context.Context, batchID, recordID string, err error) {
	s.upsertGeneration(ctx, batchID, recordID, GenFailed, "", err.Error())
}

// upsertGeneration writes generation status. Status writes are advisory
// alongside the in-memory job progress, so failures are logged rather
// than propagated.
func (s *Service) upsertGeneration(ctx context.Context, batchID, recordID string, status GenStatus, path, errMsg string) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO generations (batch_id, record_id, status, audio_path, error, generated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (batch_id, record_id) DO UPDATE
		SET status = EXCLUDED.status,
		    audio_path = EXCLUDED.audio_path,
		    error = EXCLUDED.error,
		    generated_at = EXCLUDED.generated_at`,
		batchID, recordID, string(status), path, errMsg,
	)
	if err != nil && ctx.Err() == nil {
		slog.Warn("failed to record generation status",
			"batch_id", batchID,
			"record_id", recordID,
			"status", status,
			"error", err,
		)
	}
}

// AudioClip loads a generated WAV for serving.
func (s *Service) AudioClip(batchID, recordID string) ([]byte, error) {
	return s.store.Load(batchID, recordID)
}

// selectPosts filters posts down to the requested record IDs, keeping
// batch order. An empty selection means all posts.
func selectPosts(posts []Post, recordIDs []string) []Post {
	if len(recordIDs) == 0 {
		return posts
	}
	want := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		want[id] = true
	}
	selected := make([]Post, 0, len(recordIDs))
	for _, p := range posts {
		if want[p.ID] {
			selected = append(selected, p)
		}
	}
	return selected
}
