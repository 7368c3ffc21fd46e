package repositories

import (
	"context"
	"encoding/json"
	"time"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	// GetByID loads a job without a tenant filter; the worker only has the job id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error)
	SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.Job, error)
}

type jobRepo struct {
	db DB
}

func NewJobRepo(db DB) JobRepository {
	return &jobRepo{db: db}
}

const jobColumns = `id, tenant_id, site_id, type, status, payload, result, error, attempts,
	queue_task_id, started_at, finished_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	j := &models.Job{}
	var payload, result []byte
	err := row.Scan(&j.ID, &j.TenantID, &j.SiteID, &j.Type, &j.Status, &payload, &result, &j.Error,
		&j.Attempts, &j.QueueTaskID, &j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(payload) > 0 {
		j.Payload = json.RawMessage(payload)
	}
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}
	return j, nil
}

func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	query := `
		INSERT INTO jobs (id, tenant_id, site_id, type, status, payload, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, job.ID, job.TenantID, job.SiteID, job.Type, job.Status, []byte(payload)).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	return mapErr(err)
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (r *jobRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error) {
	return scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *jobRepo) List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR site_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.list(ctx, query, tenantID, siteID, limit, offset)
}

func (r *jobRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Job, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	query := `UPDATE jobs SET queue_task_id = $1, updated_at = NOW() WHERE id = $2`
	return expectOne(r.db.Exec(ctx, query, taskID, id))
}

func (r *jobRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1, started_at = NOW(), error = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return expectOne(r.db.Exec(ctx, query, id))
}

func (r *jobRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	query := `
		UPDATE jobs
		SET status = 'succeeded', result = $1, finished_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	return expectOne(r.db.Exec(ctx, query, []byte(result), id))
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = 'failed', error = $1, finished_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	return expectOne(r.db.Exec(ctx, query, errMsg, id))
}

// ListStale returns running jobs that started before olderThan.
func (r *jobRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'running' AND started_at < $1
		ORDER BY started_at ASC
	`
	return r.list(ctx, query, olderThan)
}
