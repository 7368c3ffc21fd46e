package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type definitions
const (
	TypeSiteProvision = "site:provision"
	TypeSiteGenerate  = "site:generate"
	TypeSitePublish   = "site:publish"
	TypeSiteDelete    = "site:delete"
	TypeFeedSync      = "feed:sync"
)

// Queue names, weighted by the worker config.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const (
	provisionTimeout = 20 * time.Minute
	defaultTimeout   = 10 * time.Minute
	feedSyncTimeout  = time.Hour
)

// JobTaskPayload is what travels through redis; everything else is read from the Job row.
type JobTaskPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// FeedSyncPayload controls a scheduled or manual feed sync.
type FeedSyncPayload struct {
	Incremental bool   `json:"incremental"`
	Upload      bool   `json:"upload"`
	Notify      bool   `json:"notify"`
	Trigger     string `json:"trigger,omitempty"`
}

var taskTypes = map[string]string{
	models.JobTypeProvision: TypeSiteProvision,
	models.JobTypeGenerate:  TypeSiteGenerate,
	models.JobTypePublish:   TypeSitePublish,
	models.JobTypeDelete:    TypeSiteDelete,
}

// TaskTypeFor maps a Job.Type to the asynq task type that runs it.
func TaskTypeFor(jobType string) (string, error) {
	t, ok := taskTypes[jobType]
	if !ok {
		return "", fmt.Errorf("no task type for job type %q", jobType)
	}
	return t, nil
}

func newJobTask(taskType string, job *models.Job, queue string, timeout time.Duration, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(JobTaskPayload{JobID: job.ID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data,
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.TaskID(job.ID.String()),
	), nil
}

// NewSiteProvisionTask creates a site provision task
func NewSiteProvisionTask(job *models.Job, maxRetry int) (*asynq.Task, error) {
	return newJobTask(TypeSiteProvision, job, QueueCritical, provisionTimeout, maxRetry)
}

// NewSiteGenerateTask creates a content generation task
func NewSiteGenerateTask(job *models.Job, maxRetry int) (*asynq.Task, error) {
	return newJobTask(TypeSiteGenerate, job, QueueDefault, defaultTimeout, maxRetry)
}

// NewSitePublishTask creates a publish task
func NewSitePublishTask(job *models.Job, maxRetry int) (*asynq.Task, error) {
	return newJobTask(TypeSitePublish, job, QueueDefault, defaultTimeout, maxRetry)
}

// NewSiteDeleteTask creates a site teardown task
func NewSiteDeleteTask(job *models.Job, maxRetry int) (*asynq.Task, error) {
	return newJobTask(TypeSiteDelete, job, QueueCritical, defaultTimeout, maxRetry)
}

// NewFeedSyncTask creates a feed sync task. Only one can be queued or running at a time.
func NewFeedSyncTask(p FeedSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFeedSync, data,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(1),
		asynq.Timeout(feedSyncTimeout),
		asynq.Unique(feedSyncTimeout),
	), nil
}

// NewTaskForJob picks the task constructor for job.Type.
func NewTaskForJob(job *models.Job, maxRetry int) (*asynq.Task, error) {
	switch job.Type {
	case models.JobTypeProvision:
		return NewSiteProvisionTask(job, maxRetry)
	case models.JobTypeGenerate:
		return NewSiteGenerateTask(job, maxRetry)
	case models.JobTypePublish:
		return NewSitePublishTask(job, maxRetry)
	case models.JobTypeDelete:
		return NewSiteDeleteTask(job, maxRetry)
	}
	_, err := TaskTypeFor(job.Type)
	return nil, err
}

// taskClient is the part of *asynq.Client the enqueuer uses.
type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqEnqueuer hands persisted jobs to asynq.
type AsynqEnqueuer struct {
	client   taskClient
	maxRetry int
}

func NewAsynqEnqueuer(client *asynq.Client, maxRetry int) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, maxRetry: maxRetry}
}

func (e *AsynqEnqueuer) EnqueueJob(ctx context.Context, job *models.Job) (string, error) {
	task, err := NewTaskForJob(job, e.maxRetry)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (e *AsynqEnqueuer) EnqueueFeedSync(ctx context.Context, p FeedSyncPayload) (string, error) {
	task, err := NewFeedSyncTask(p)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
