package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeProvision = "site.provision"
	JobTypeGenerate  = "site.generate"
	JobTypePublish   = "site.publish"
	JobTypeDelete    = "site.delete"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TenantID    uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	SiteID      *uuid.UUID      `json:"site_id,omitempty" db:"site_id"`
	Type        string          `json:"type" db:"type"`
	Status      string          `json:"status" db:"status"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Result      json.RawMessage `json:"result,omitempty" db:"result"`
	Error       *string         `json:"error,omitempty" db:"error"`
	Attempts    int             `json:"attempts" db:"attempts"`
	QueueTaskID *string         `json:"queue_task_id,omitempty" db:"queue_task_id"`
	StartedAt   *time.Time      `json:"started_at,omitempty" db:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

func (j *Job) Finished() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type JobLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	JobID     uuid.UUID `json:"job_id" db:"job_id"`
	Level     string    `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JobPayload is stored on the job row and describes what the worker should act on.
type JobPayload struct {
	SiteID      uuid.UUID  `json:"site_id"`
	VersionID   *uuid.UUID `json:"version_id,omitempty"`
	RequestedBy *uuid.UUID `json:"requested_by,omitempty"`
}
