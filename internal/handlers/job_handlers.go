package handlers

import (
	"net/http"

	"sitecraft/internal/common"
	"sitecraft/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type JobHandlers struct {
	jobService services.JobService
}

func NewJobHandlers(jobService services.JobService) *JobHandlers {
	return &JobHandlers{jobService: jobService}
}

// ListJobs handles GET /v1/jobs, optionally filtered by ?site_id=
func (h *JobHandlers) ListJobs(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	limit, offset := common.ParsePagination(c)

	var siteID *uuid.UUID
	if raw := c.QueryParam("site_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return common.SendValidationError(c, "site_id", "must be a valid UUID")
		}
		siteID = &id
	}

	jobs, err := h.jobService.List(c.Request().Context(), tenantID, siteID, limit, offset)
	if err != nil {
		return common.SendServiceError(c, "jobs", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /v1/jobs/:id
func (h *JobHandlers) GetJob(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	job, err := h.jobService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendServiceError(c, "job", err)
	}
	return c.JSON(http.StatusOK, job)
}

// GetJobLogs handles GET /v1/jobs/:id/logs
func (h *JobHandlers) GetJobLogs(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, offset := common.ParsePagination(c)

	logs, err := h.jobService.Logs(c.Request().Context(), tenantID, id, limit, offset)
	if err != nil {
		return common.SendServiceError(c, "job", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}
