package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SiteStatusPending      = "pending"
	SiteStatusProvisioning = "provisioning"
	SiteStatusActive       = "active"
	SiteStatusFailed       = "failed"
	SiteStatusSuspended    = "suspended"
	SiteStatusDeleted      = "deleted"
)

// BusinessProfile is what the copy generator knows about the business behind a site.
type BusinessProfile struct {
	Industry     string   `json:"industry,omitempty"`
	Description  string   `json:"description,omitempty"`
	Audience     string   `json:"audience,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
}

type Site struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	TenantID         uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	Name             string            `json:"name" db:"name"`
	Slug             string            `json:"slug" db:"slug"`
	Domain           string            `json:"domain" db:"domain"`
	Status           string            `json:"status" db:"status"`
	Business         BusinessProfile   `json:"business" db:"business"`
	WPPath           string            `json:"wp_path,omitempty" db:"wp_path"`
	WPURL            string            `json:"wp_url,omitempty" db:"wp_url"`
	WPAdminUser      string            `json:"wp_admin_user,omitempty" db:"wp_admin_user"`
	WPPageIDs        map[string]int    `json:"wp_page_ids,omitempty" db:"wp_page_ids"`
	CurrentVersionID *uuid.UUID        `json:"current_version_id,omitempty" db:"current_version_id"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

func (s *Site) IsProvisioned() bool {
	return s.WPPath != "" && (s.Status == SiteStatusActive || s.Status == SiteStatusSuspended)
}
