package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	VersionSourceAI       = "ai"
	VersionSourceFallback = "fallback"
	VersionSourceManual   = "manual"

	VersionStatusDraft     = "draft"
	VersionStatusPublished = "published"
	VersionStatusFailed    = "failed"
)

type SiteVersion struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SiteID      uuid.UUID  `json:"site_id" db:"site_id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Version     int        `json:"version" db:"version"`
	Content     Document   `json:"content" db:"content"`
	Source      string     `json:"source" db:"source"`
	Status      string     `json:"status" db:"status"`
	HTML        string     `json:"-" db:"html"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	ArtifactKey *string    `json:"artifact_key,omitempty" db:"artifact_key"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
