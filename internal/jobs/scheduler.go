// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Scheduler runs each registered job on its own ticker.
// It implements cartridge.BackgroundWorker.
type Scheduler struct {
	logger *slog.Logger
	jobs   []scheduledJob

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	// guards against overlapping runs of the same job
	busy sync.Map
}

// NewScheduler creates an empty scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Every registers job to run once at start and then every interval
func (s *Scheduler) Every(interval time.Duration, job Job) *Scheduler {
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
	return s
}

// Start launches every registered job
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("Background jobs already running")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(sj)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(sj scheduledJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	s.logger.Info("Starting job",
		slog.String("job", sj.job.Name()),
		slog.Duration("interval", sj.interval))
	s.RunOnce(s.ctx, sj.job)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(s.ctx, sj.job)
		case <-s.ctx.Done():
			s.logger.Info("Job stopped", slog.String("job", sj.job.Name()))
			return
		}
	}
}

// RunOnce executes job unless a previous run is still in progress.
// Panics are recovered and logged.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	if _, running := s.busy.LoadOrStore(job.Name(), true); running {
		s.logger.Debug("Skipping job execution - previous run still active", slog.String("job", job.Name()))
		return
	}
	defer s.busy.Delete(job.Name())

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Stop cancels all jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
