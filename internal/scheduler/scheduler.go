package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
)

// Job returns how many records it touched.
type Job func(ctx context.Context, now time.Time) (int, error)

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Scheduler runs each registered job on its own ticker.
type Scheduler struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	entries []entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *zap.Logger, metrics *metrics.MetricsCollector) *Scheduler {
	return &Scheduler{
		logger:  logger.With(zap.String("component", "scheduler")),
		metrics: metrics,
	}
}

// Every registers job. Call before Start.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	if interval <= 0 || job == nil {
		return
	}
	s.entries = append(s.entries, entry{name: name, interval: interval, job: job})
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.entries)))
}

// Stop cancels all loops and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Run starts the jobs and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.run(ctx, e, time.Now())
	for {
		select {
		case t := <-ticker.C:
			s.run(ctx, e, t)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, e entry, now time.Time) {
	start := time.Now()
	n, err := e.job(ctx, now)
	s.metrics.ObserveLatency("scheduler_job", time.Since(start))
	if err != nil {
		s.metrics.IncrementCounter("scheduler_job_errors", map[string]string{"job": e.name})
		s.logger.Error("Scheduled job failed", zap.String("job", e.name), zap.Error(err))
		return
	}
	s.metrics.IncrementCounter("scheduler_job_runs", map[string]string{"job": e.name})
	if n > 0 {
		s.logger.Info("Scheduled job completed", zap.String("job", e.name), zap.Int("affected", n))
	}
}
