package background

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"sitecraft/internal/jobs"
	"sitecraft/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

const (
	staleJobInterval  = 5 * time.Minute
	staleJobThreshold = 30 * time.Minute
	lapseSweepEvery   = time.Hour

	JobStaleReaper = "stale-job-reaper"
	JobLapseSweep  = "subscription-lapse-sweep"
	JobFeedDaily   = "feed-daily-sync"
)

// StaleJobStore is the slice of the job repository the reaper needs.
type StaleJobStore interface {
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.Job, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type LapseSweeper interface {
	SweepLapsed(ctx context.Context, now time.Time) (int, error)
}

type FeedEnqueuer interface {
	EnqueueFeedSync(ctx context.Context, p jobs.FeedSyncPayload) (string, error)
}

type SchedulerDeps struct {
	Jobs    StaleJobStore
	Billing LapseSweeper
	// Feed is nil when no feed config is present; the daily sync is then not registered.
	Feed   FeedEnqueuer
	FeedAt string
}

// JobScheduler runs the worker's periodic maintenance jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	deps      SchedulerDeps
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
	now       func() time.Time
}

func NewJobScheduler(deps SchedulerDeps) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		deps:      deps,
		jobs:      make(map[string]gocron.Job),
		now:       time.Now,
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	if js.deps.Jobs != nil {
		if err := js.add(JobStaleReaper, gocron.DurationJob(staleJobInterval), js.ReapStaleJobs); err != nil {
			return err
		}
	}
	if js.deps.Billing != nil {
		if err := js.add(JobLapseSweep, gocron.DurationJob(lapseSweepEvery), js.SweepLapsedSubscriptions); err != nil {
			return err
		}
	}
	if js.deps.Feed != nil {
		h, m, err := ParseDailyAt(js.deps.FeedAt)
		if err != nil {
			return err
		}
		daily := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0)))
		if err := js.add(JobFeedDaily, daily, js.EnqueueDailyFeedSync); err != nil {
			return err
		}
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
	return nil
}

func (js *JobScheduler) add(name string, def gocron.JobDefinition, fn func(context.Context) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		def,
		gocron.NewTask(func() {
			if err := fn(context.Background()); err != nil {
				log.Printf("ERROR: background job %s: %v", name, err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create %s job: %w", name, err)
	}
	js.jobs[name] = job
	return nil
}

// ParseDailyAt parses an "HH:MM" wall clock time.
func ParseDailyAt(s string) (uint, uint, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid daily time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in daily time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in daily time %q", s)
	}
	return uint(h), uint(m), nil
}

// ReapStaleJobs fails jobs stuck in running longer than the threshold,
// which happens when a worker dies mid-task.
func (js *JobScheduler) ReapStaleJobs(ctx context.Context) error {
	cutoff := js.now().Add(-staleJobThreshold)
	stale, err := js.deps.Jobs.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale jobs: %w", err)
	}

	reaped := 0
	for _, j := range stale {
		msg := fmt.Sprintf("job exceeded %s without finishing", staleJobThreshold)
		if err := js.deps.Jobs.MarkFailed(ctx, j.ID, msg); err != nil {
			log.Printf("WARN: mark stale job %s failed: %v", j.ID, err)
			continue
		}
		reaped++
	}
	if reaped > 0 {
		log.Printf("Reaped %d stale jobs", reaped)
	}
	return nil
}

func (js *JobScheduler) SweepLapsedSubscriptions(ctx context.Context) error {
	n, err := js.deps.Billing.SweepLapsed(ctx, js.now())
	if err != nil {
		return fmt.Errorf("sweep lapsed subscriptions: %w", err)
	}
	if n > 0 {
		log.Printf("Suspended %d tenants with lapsed subscriptions", n)
	}
	return nil
}

func (js *JobScheduler) EnqueueDailyFeedSync(ctx context.Context) error {
	id, err := js.deps.Feed.EnqueueFeedSync(ctx, jobs.FeedSyncPayload{
		Incremental: true,
		Upload:      true,
		Notify:      true,
		Trigger:     "schedule",
	})
	if err != nil {
		return fmt.Errorf("enqueue feed sync: %w", err)
	}
	log.Printf("Enqueued daily feed sync %s", id)
	return nil
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobs, name)
		return err
	}
	return nil
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       names,
	}
}
