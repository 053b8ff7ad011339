// Package app runs pipeline work in the background and lets the interactive
// side poll its progress.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"shelfscan/internal/logging"
)

// DefaultPollInterval is how often Watch samples a running job.
const DefaultPollInterval = time.Second

// ErrJobActive is returned by Launch while another job is still alive.
var ErrJobActive = errors.New("a job is already running")

// Job is one background run. It cannot be cancelled once launched.
type Job struct {
	Name    string
	started time.Time
	done    chan struct{}

	mu      sync.Mutex
	err     error
	elapsed int
}

// Alive reports whether the job's function is still running.
func (j *Job) Alive() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its error.
func (j *Job) Wait() error {
	<-j.done
	return j.Err()
}

// Err returns the job's error once it has finished, or nil while alive.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Elapsed returns the whole seconds counted by Watch so far.
func (j *Job) Elapsed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.elapsed
}

// Started returns the launch time.
func (j *Job) Started() time.Time { return j.started }

func (j *Job) tick() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.elapsed++
	return j.elapsed
}

// Scheduler launches at most one job at a time.
type Scheduler struct {
	mu      sync.Mutex
	current *Job
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Launch starts fn on a new goroutine. It returns ErrJobActive when the
// previous job has not finished.
func (s *Scheduler) Launch(name string, fn func(ctx context.Context) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Alive() {
		return nil, ErrJobActive
	}

	job := &Job{
		Name:    name,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	s.current = job

	go func() {
		defer close(job.done)
		err := fn(context.Background())
		job.mu.Lock()
		job.err = err
		job.mu.Unlock()
		if err != nil {
			logging.Error("job failed", "job", name, "error", err)
			return
		}
		logging.Debug("job finished", "job", name, "duration", time.Since(job.started))
	}()
	return job, nil
}

// Current returns the most recent job, or nil.
func (s *Scheduler) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch polls job every interval until it finishes. onTick receives the
// elapsed seconds while the job is alive; onDone is called once with the
// job's error. Either callback may be nil. Watch returns early if ctx ends,
// without calling onDone.
func Watch(ctx context.Context, job *Job, interval time.Duration, onTick func(elapsed int), onDone func(err error)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.done:
			if onDone != nil {
				onDone(job.Err())
			}
			return
		case <-ticker.C:
			if !job.Alive() {
				continue
			}
			n := job.tick()
			if onTick != nil {
				onTick(n)
			}
		}
	}
}
