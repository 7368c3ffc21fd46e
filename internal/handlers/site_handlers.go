package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"sitecraft/internal/common"
	"sitecraft/internal/compiler"
	"sitecraft/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SiteHandlers handles sites, their versions and media.
type SiteHandlers struct {
	siteService services.SiteService
}

func NewSiteHandlers(siteService services.SiteService) *SiteHandlers {
	return &SiteHandlers{siteService: siteService}
}

type PublishRequest struct {
	VersionID *string `json:"version_id,omitempty" validate:"omitempty,uuid"`
}

type CreateVersionRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

// ListSites handles GET /v1/sites
func (h *SiteHandlers) ListSites(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	limit, offset := common.ParsePagination(c)

	sites, err := h.siteService.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return common.SendServiceError(c, "sites", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sites":  sites,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateSite handles POST /v1/sites. The site starts pending with a provision job queued.
func (h *SiteHandlers) CreateSite(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	var req services.CreateSiteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.siteService.Create(c.Request().Context(), tenantID, userID, &req)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusAccepted, res)
}

// GetSite handles GET /v1/sites/:id
func (h *SiteHandlers) GetSite(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	site, err := h.siteService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusOK, site)
}

// UpdateSite handles PUT /v1/sites/:id
func (h *SiteHandlers) UpdateSite(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateSiteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	site, err := h.siteService.Update(c.Request().Context(), tenantID, id, &req)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusOK, site)
}

// DeleteSite handles DELETE /v1/sites/:id
func (h *SiteHandlers) DeleteSite(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	job, err := h.siteService.Delete(c.Request().Context(), tenantID, userID, id)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"job": job})
}

// Generate handles POST /v1/sites/:id/generate
func (h *SiteHandlers) Generate(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	job, err := h.siteService.RequestGeneration(c.Request().Context(), tenantID, userID, id)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"job": job})
}

// Publish handles POST /v1/sites/:id/publish. Without a version_id the latest version is published.
func (h *SiteHandlers) Publish(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req PublishRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}

	var versionID *uuid.UUID
	if req.VersionID != nil && *req.VersionID != "" {
		v, err := uuid.Parse(*req.VersionID)
		if err != nil {
			return common.SendValidationError(c, "version_id", "must be a valid UUID")
		}
		versionID = &v
	}

	job, err := h.siteService.RequestPublish(c.Request().Context(), tenantID, userID, id, versionID)
	if err != nil {
		return common.SendServiceError(c, "version", err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"job": job})
}

// ListVersions handles GET /v1/sites/:id/versions
func (h *SiteHandlers) ListVersions(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, offset := common.ParsePagination(c)

	versions, err := h.siteService.ListVersions(c.Request().Context(), tenantID, id, limit, offset)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions": versions,
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateVersion handles POST /v1/sites/:id/versions with a client supplied document.
func (h *SiteHandlers) CreateVersion(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateVersionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	v, err := h.siteService.CreateVersion(c.Request().Context(), tenantID, userID, id, req.Content)
	if err != nil {
		return sendVersionError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// GetVersion handles GET /v1/sites/:id/versions/:versionId
func (h *SiteHandlers) GetVersion(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	siteID, versionID, err := versionPath(c)
	if err != nil {
		return err
	}

	v, err := h.siteService.GetVersion(c.Request().Context(), tenantID, siteID, versionID)
	if err != nil {
		return common.SendServiceError(c, "version", err)
	}
	return c.JSON(http.StatusOK, v)
}

// Preview handles GET /v1/sites/:id/versions/:versionId/preview
func (h *SiteHandlers) Preview(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	siteID, versionID, err := versionPath(c)
	if err != nil {
		return err
	}

	html, err := h.siteService.Preview(c.Request().Context(), tenantID, siteID, versionID)
	if err != nil {
		return common.SendServiceError(c, "version", err)
	}
	c.Response().Header().Set("Content-Security-Policy", "default-src 'none'; img-src https: http: data:; style-src 'unsafe-inline'")
	return c.HTML(http.StatusOK, html)
}

// Artifact handles GET /v1/sites/:id/versions/:versionId/artifact
func (h *SiteHandlers) Artifact(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	siteID, versionID, err := versionPath(c)
	if err != nil {
		return err
	}

	url, err := h.siteService.ArtifactURL(c.Request().Context(), tenantID, siteID, versionID)
	if err != nil {
		return common.SendServiceError(c, "artifact", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// UploadMedia handles POST /v1/sites/:id/media as multipart form field "file".
func (h *SiteHandlers) UploadMedia(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "is required")
	}
	if fh.Size > services.MaxMediaSize {
		return common.SendValidationError(c, "file", "is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return common.SendServerError(c, "could not read upload")
	}
	defer f.Close()

	contentType, err := sniffContentType(f)
	if err != nil {
		return common.SendServerError(c, "could not read upload")
	}

	res, err := h.siteService.UploadMedia(c.Request().Context(), tenantID, id,
		filepath.Base(fh.Filename), contentType, fh.Size, f)
	if err != nil {
		return common.SendServiceError(c, "site", err)
	}
	return c.JSON(http.StatusCreated, res)
}

// sniffContentType detects the type from the first bytes and rewinds the file.
func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// sendVersionError reports every schema problem instead of the first one.
func sendVersionError(c echo.Context, err error) error {
	var verr *compiler.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":     "VALIDATION_ERROR",
				"message":  "Document is invalid",
				"problems": verr.Problems,
			},
		})
	}
	return common.SendServiceError(c, "site", err)
}

func versionPath(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	siteID, err := pathID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	versionID, err := pathID(c, "versionId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return siteID, versionID, nil
}
