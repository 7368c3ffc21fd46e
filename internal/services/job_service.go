package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/google/uuid"
)

// TaskEnqueuer hands a persisted job to the queue and returns the queue's task id.
type TaskEnqueuer interface {
	EnqueueJob(ctx context.Context, job *models.Job) (string, error)
}

type JobService interface {
	Enqueue(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, jobType string, payload interface{}) (*models.Job, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error)
	Logs(ctx context.Context, tenantID, id uuid.UUID, limit, offset int) ([]*models.JobLog, error)
	// Log prints and persists a line for the job. Persistence failures are only logged.
	Log(ctx context.Context, jobID uuid.UUID, level, msg string)
}

type jobService struct {
	jobs     repositories.JobRepository
	logs     repositories.JobLogRepository
	enqueuer TaskEnqueuer
}

func NewJobService(jobs repositories.JobRepository, logs repositories.JobLogRepository, enqueuer TaskEnqueuer) JobService {
	return &jobService{jobs: jobs, logs: logs, enqueuer: enqueuer}
}

func (s *jobService) Enqueue(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, jobType string, payload interface{}) (*models.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	job := &models.Job{
		ID:       uuid.New(),
		TenantID: tenantID,
		SiteID:   siteID,
		Type:     jobType,
		Status:   models.JobStatusQueued,
		Payload:  raw,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	taskID, err := s.enqueuer.EnqueueJob(ctx, job)
	if err != nil {
		msg := fmt.Sprintf("enqueue failed: %v", err)
		if markErr := s.jobs.MarkFailed(ctx, job.ID, msg); markErr != nil {
			log.Printf("ERROR: mark job %s failed: %v", job.ID, markErr)
		}
		return nil, fmt.Errorf("enqueue %s job: %w", jobType, err)
	}

	if err := s.jobs.SetTaskID(ctx, job.ID, taskID); err != nil {
		log.Printf("WARN: store task id for job %s: %v", job.ID, err)
	} else {
		job.QueueTaskID = &taskID
	}

	log.Printf("DEBUG: job %s (%s) queued as task %s", job.ID, jobType, taskID)
	return job, nil
}

func (s *jobService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error) {
	return s.jobs.GetForTenant(ctx, tenantID, id)
}

func (s *jobService) List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error) {
	return s.jobs.List(ctx, tenantID, siteID, limit, offset)
}

func (s *jobService) Logs(ctx context.Context, tenantID, id uuid.UUID, limit, offset int) ([]*models.JobLog, error) {
	if _, err := s.jobs.GetForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.logs.ListByJob(ctx, id, limit, offset)
}

func (s *jobService) Log(ctx context.Context, jobID uuid.UUID, level, msg string) {
	switch level {
	case models.LogLevelError:
		log.Printf("ERROR: job %s: %s", jobID, msg)
	case models.LogLevelWarn:
		log.Printf("WARN: job %s: %s", jobID, msg)
	default:
		level = models.LogLevelInfo
		log.Printf("job %s: %s", jobID, msg)
	}

	entry := &models.JobLog{ID: uuid.New(), JobID: jobID, Level: level, Message: msg}
	if err := s.logs.Create(ctx, entry); err != nil {
		log.Printf("WARN: persist log line for job %s: %v", jobID, err)
	}
}
