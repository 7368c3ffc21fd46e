package repositories

import (
	"context"

	"sitecraft/internal/models"

	"github.com/google/uuid"
)

type JobLogRepository interface {
	Create(ctx context.Context, entry *models.JobLog) error
	ListByJob(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]*models.JobLog, error)
}

type jobLogRepo struct {
	db DB
}

func NewJobLogRepo(db DB) JobLogRepository {
	return &jobLogRepo{db: db}
}

func (r *jobLogRepo) Create(ctx context.Context, entry *models.JobLog) error {
	query := `
		INSERT INTO job_logs (id, job_id, level, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	return mapErr(r.db.QueryRow(ctx, query, entry.ID, entry.JobID, entry.Level, entry.Message).Scan(&entry.CreatedAt))
}

func (r *jobLogRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]*models.JobLog, error) {
	query := `
		SELECT id, job_id, level, message, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.JobLog
	for rows.Next() {
		entry := &models.JobLog{}
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Level, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
