// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"fleetcheck-service/internal/service/batch"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BatchRunner is the slice of the orchestrator the scheduler needs.
type BatchRunner interface {
	Run(ctx context.Context) (*batch.Result, error)
}

// Scheduler triggers the nightly re-verification sweep. The whole run is
// wrapped in a deployment-level timeout; the orchestrator has no mid-batch
// cancellation of its own.
type Scheduler struct {
	runner   BatchRunner
	cronSpec string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

func New(runner BatchRunner, cronSpec string, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if cronSpec == "" {
		cronSpec = "0 2 * * *"
	}
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		cronSpec: cronSpec,
		timeout:  timeout,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
	}
}

// Start registers the nightly job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runBatch); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("batch scheduler started", zap.String("cron", s.cronSpec))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("batch scheduler stopped")
}

func (s *Scheduler) runBatch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled batch run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled batch run completed",
		zap.String("run_id", res.RunID),
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
	)
}
