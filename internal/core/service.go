package core

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxsheet/voxsheet/internal/audio"
	"github.com/voxsheet/voxsheet/internal/config"
	"github.com/voxsheet/voxsheet/internal/tabular"
	"github.com/voxsheet/voxsheet/internal/tts"
)

// Service provides the core business logic: batch decoding and storage,
// audio generation, and export.
type Service struct {
	pool  *pgxpool.Pool
	cfg   *config.Config
	synth tts.Synthesizer // nil when no speech API key is configured
	store *audio.Store

	jobLimiter *JobLimiter

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

type activeJob struct {
	ID        string
	BatchID   string
	Cancel    func()
	Progress  JobProgress
	Result    *JobResult
	Done      chan struct{}
	Listeners []chan JobProgress

	// ListenerMu guards Listeners and Progress.
	ListenerMu sync.Mutex
}

// NewService creates a new Service instance. synth may be nil, in which
// case batches can be decoded and browsed but not generated.
func NewService(pool *pgxpool.Pool, cfg *config.Config, synth tts.Synthesizer) *Service {
	return &Service{
		pool:       pool,
		cfg:        cfg,
		synth:      synth,
		store:      audio.NewStore(cfg.Export.AudioDir),
		jobLimiter: NewJobLimiter(cfg.Generate.MaxConcurrent, cfg.Generate.MaxWaitTime),
		jobs:       make(map[string]*activeJob),
	}
}

// Schema returns the decode schema derived from upload configuration.
func (s *Service) Schema() tabular.Schema {
	schema := tabular.Schema{
		Body:   s.cfg.Upload.BodyField,
		Author: s.cfg.Upload.AuthorField,
	}
	for _, name := range s.cfg.Upload.NumericFields {
		schema.Fields = append(schema.Fields, tabular.FieldSpec{Name: name, Type: tabular.FieldNumeric})
	}
	for _, name := range s.cfg.Upload.FlagFields {
		schema.Fields = append(schema.Fields, tabular.FieldSpec{Name: name, Type: tabular.FieldFlag})
	}
	return schema
}

// JobLimiterStatus returns the generation limiter state for monitoring.
func (s *Service) JobLimiterStatus() JobLimiterStatus {
	return s.jobLimiter.Status()
}

// WaitForJobs blocks until all active generation jobs complete or the
// context is cancelled. Used during graceful shutdown.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.jobLimiter.WaitForDrain(ctx)
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the job completes.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}

	ch := make(chan JobProgress, 10)

	job.ListenerMu.Lock()
	job.Listeners = append(job.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- job.Progress:
	default:
	}
	job.ListenerMu.Unlock()

	return ch, nil
}

// CancelJob cancels an in-progress generation job. Audio already
// generated by the job is kept.
func (s *Service) CancelJob(jobID string) error {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return ErrJobNotFound
	}

	job.Cancel()
	return nil
}

// GetJobResult returns the result of a completed job.
// Blocks until the job completes if still in progress.
func (s *Service) GetJobResult(jobID string) (*JobResult, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}

	<-job.Done

	return job.Result, nil
}

// GetJobProgress returns the current progress without blocking.
func (s *Service) GetJobProgress(jobID string) (JobProgress, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return JobProgress{}, ErrJobNotFound
	}

	return job.snapshot(), nil
}

// cleanup removes a finished job from the registry after a delay so late
// result/progress requests still resolve.
func (s *Service) cleanup(jobID string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}

// updateProgress applies a mutation to the job's progress and sends the
// new state to all listeners. ListenerMu guards Progress itself, so the
// job goroutine and concurrent progress reads never race.
func (job *activeJob) updateProgress(mutate func(*JobProgress)) {
	job.ListenerMu.Lock()
	defer job.ListenerMu.Unlock()

	mutate(&job.Progress)

	for _, ch := range job.Listeners {
		select {
		case ch <- job.Progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// snapshot returns a copy of the current progress.
func (job *activeJob) snapshot() JobProgress {
	job.ListenerMu.Lock()
	defer job.ListenerMu.Unlock()
	return job.Progress
}

// closeListeners closes all listener channels.
func (job *activeJob) closeListeners() {
	job.ListenerMu.Lock()
	defer job.ListenerMu.Unlock()

	for _, ch := range job.Listeners {
		close(ch)
	}
	job.Listeners = nil
}
