package core

// job_limiter.go implements concurrency control for generation jobs.
//
// The limiter uses a semaphore pattern to restrict parallel generation
// jobs to a configurable maximum. Each job issues a long sequence of
// speech API calls, so an unbounded job count would exhaust API quota
// and file descriptors quickly. When all slots are occupied, new
// requests wait up to maxWait before failing with ErrTooManyJobs.
//
// The limiter also supports graceful shutdown via WaitForDrain, which
// blocks until all active jobs complete.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyJobs is returned when all job slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many concurrent generation jobs, please try again later")

// DefaultMaxConcurrentJobs is the default limit for parallel jobs.
const DefaultMaxConcurrentJobs = 2

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// JobLimiter controls concurrent generation processing using a semaphore pattern.
type JobLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewJobLimiter creates a limiter that allows at most maxConcurrent simultaneous jobs.
// Requests that cannot acquire a slot within maxWait will receive ErrTooManyJobs.
func NewJobLimiter(maxConcurrent int, maxWait time.Duration) *JobLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &JobLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a job slot.
// Returns nil on success, ErrTooManyJobs if the timeout expires.
// The caller MUST call Release() when the job completes (use defer).
func (l *JobLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from slot-wait timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyJobs

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire.
func (l *JobLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently active jobs.
func (l *JobLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until all active jobs complete or the context is
// cancelled. Used for graceful shutdown.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// JobLimiterStatus is a snapshot of the limiter's current state.
type JobLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring/debugging.
func (l *JobLimiter) Status() JobLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return JobLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
