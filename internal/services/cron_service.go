package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered
var ErrUnknownJob = errors.New("unknown job")

// Sweeper is a periodic background pass
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// CronService manages the expiration sweepers. Each sweeper runs on its own
// schedule; a run that is still going when the next tick fires is skipped.
type CronService struct {
	cron   *cron.Cron
	jobs   []cronJob
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type cronJob struct {
	name     string
	interval time.Duration
	sweeper  Sweeper
	entryID  cron.EntryID
}

// NewCronService creates a new CronService
func NewCronService(logger *logrus.Logger) *CronService {
	printf := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &CronService{
		cron: cron.New(
			cron.WithLogger(printf),
			cron.WithChain(cron.Recover(printf), cron.SkipIfStillRunning(printf)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a sweeper to run every interval. Call before Start.
func (s *CronService) Register(name string, interval time.Duration, sweeper Sweeper) {
	s.jobs = append(s.jobs, cronJob{name: name, interval: interval, sweeper: sweeper})
}

// Start schedules all registered sweepers
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	for i := range s.jobs {
		job := s.jobs[i]
		spec := fmt.Sprintf("@every %s", job.interval)
		id, err := s.cron.AddFunc(spec, func() { s.runJob(job) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.jobs[i].entryID = id
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"interval": job.interval.String(),
		}).Info("✓ Scheduled sweeper")
	}

	s.cron.Start()
	s.logger.Info("✓ Cron service started successfully")
	return nil
}

// Stop cancels running passes and waits for them to return
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Cron service stopped")
}

// RunNow runs the named sweeper immediately (admin/testing)
func (s *CronService) RunNow(name string) (int, error) {
	for _, job := range s.jobs {
		if job.name == name {
			return job.sweeper.RunOnce(s.ctx)
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownJob, name)
}

func (s *CronService) runJob(job cronJob) {
	startTime := time.Now()

	n, err := job.sweeper.RunOnce(s.ctx)
	if err != nil {
		// The next tick retries; the process keeps running
		s.logger.WithError(err).WithField("job", job.name).Error("[CRON ERROR] Sweeper pass failed")
		return
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"affected": n,
			"duration": time.Since(startTime).String(),
		}).Info("[CRON] Sweeper pass completed")
	}
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		job := map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		}
		for _, j := range s.jobs {
			if j.entryID == entry.ID {
				job["name"] = j.name
			}
		}
		jobs = append(jobs, job)
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
