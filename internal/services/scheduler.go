package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/oklog/ulid/v2"

	"github.com/Lllllllleong/docchannelbot/internal/catalog"
	"github.com/Lllllllleong/docchannelbot/internal/metrics"
	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// ScheduleLayout is the time format admins type when deferring a publish.
const ScheduleLayout = "02.01.2006 15:04"

var (
	ErrBadScheduleFormat = errors.New("schedule time must look like DD.MM.YYYY HH:MM")
	ErrScheduleInPast    = errors.New("schedule time is in the past")
)

// ParseScheduleTime reads an admin-typed time in loc and rejects anything
// not strictly after now.
func ParseScheduleTime(text string, loc *time.Location, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(ScheduleLayout, strings.TrimSpace(text), loc)
	if err != nil {
		return time.Time{}, ErrBadScheduleFormat
	}
	if !t.After(now) {
		return time.Time{}, ErrScheduleInPast
	}
	return t, nil
}

// JobFunc performs a scheduled publish. It owns reporting the result back to
// the admin.
type JobFunc func(ctx context.Context, job models.ScheduledJob)

// Scheduler runs deferred publishes as one-shot gocron jobs. Jobs are stored
// before they are registered so a restart can pick them up again.
type Scheduler struct {
	cron   gocron.Scheduler
	store  catalog.Store
	run    JobFunc
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
}

// NewScheduler creates a stopped scheduler. Call Start before jobs can fire.
func NewScheduler(store catalog.Store, run JobFunc, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		cron:    cron,
		store:   store,
		run:     run,
		logger:  logger,
		now:     time.Now,
		baseCtx: context.Background(),
	}, nil
}

// Start begins firing jobs. ctx is handed to every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// Schedule persists a deferred publish and registers it.
func (s *Scheduler) Schedule(ctx context.Context, localPath, originalFileName string, chatID int64, runAt time.Time) (models.ScheduledJob, error) {
	job := models.ScheduledJob{
		ID:               ulid.Make().String(),
		LocalPath:        localPath,
		OriginalFileName: originalFileName,
		ChatID:           chatID,
		RunAt:            runAt,
	}
	if err := s.store.AddScheduledJob(ctx, job); err != nil {
		return models.ScheduledJob{}, fmt.Errorf("failed to persist scheduled job: %w", err)
	}
	if err := s.register(job); err != nil {
		if delErr := s.store.DeleteScheduledJob(ctx, job.ID); delErr != nil {
			s.logger.Warn("Failed to roll back scheduled job.", "jobId", job.ID, "error", delErr)
		}
		return models.ScheduledJob{}, err
	}
	s.logger.Info("Publish scheduled.", "jobId", job.ID, "fileName", originalFileName, "runAt", runAt)
	return job, nil
}

// Restore re-registers persisted jobs. Past-due jobs run right away; jobs
// whose file is gone are dropped.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	jobs, err := s.store.ListScheduledJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	restored := 0
	for _, job := range jobs {
		logCtx := s.logger.With("jobId", job.ID, "fileName", job.OriginalFileName)
		if _, err := os.Stat(job.LocalPath); errors.Is(err, fs.ErrNotExist) {
			logCtx.Warn("Dropping scheduled job, file no longer exists.", "path", job.LocalPath)
			if err := s.store.DeleteScheduledJob(ctx, job.ID); err != nil {
				logCtx.Warn("Failed to delete dropped job.", "error", err)
			}
			continue
		}
		if err := s.register(job); err != nil {
			logCtx.Error("Failed to restore scheduled job.", "error", err)
			continue
		}
		restored++
	}
	s.logger.Info("Scheduled jobs restored.", "restored", restored, "stored", len(jobs))
	return restored, nil
}

// List returns the pending jobs ordered by run time.
func (s *Scheduler) List(ctx context.Context) ([]models.ScheduledJob, error) {
	return s.store.ListScheduledJobs(ctx)
}

func (s *Scheduler) register(job models.ScheduledJob) error {
	start := gocron.OneTimeJobStartDateTime(job.RunAt)
	if !job.RunAt.After(s.now().Add(time.Second)) {
		start = gocron.OneTimeJobStartImmediately()
	}
	_, err := s.cron.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(s.execute, job),
		gocron.WithName(job.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.ID, err)
	}
	metrics.ScheduledJobs.Inc()
	return nil
}

func (s *Scheduler) execute(job models.ScheduledJob) {
	defer metrics.ScheduledJobs.Dec()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	logCtx := s.logger.With("jobId", job.ID, "fileName", job.OriginalFileName)
	if ctx.Err() != nil {
		logCtx.Info("Shutting down, leaving scheduled publish for the next start.")
		return
	}
	logCtx.Info("Running scheduled publish.")
	s.run(ctx, job)

	if ctx.Err() != nil {
		// The run was cut short. While the upload is still on disk the
		// record stays so Restore can run it again.
		if _, err := os.Stat(job.LocalPath); err == nil {
			logCtx.Warn("Scheduled publish interrupted by shutdown, keeping job.")
			return
		}
		logCtx.Error("Scheduled publish interrupted by shutdown, upload is gone.")
	}
	if err := s.store.DeleteScheduledJob(context.WithoutCancel(ctx), job.ID); err != nil {
		logCtx.Warn("Failed to delete finished job.", "error", err)
	}
}
