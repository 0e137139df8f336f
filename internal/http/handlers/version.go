package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/http/response"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/services"
)

const entryURLTTL = 15 * time.Minute

type VersionHandler struct {
	log     *logger.Logger
	catalog services.CatalogService
	publish services.PublishService
}

func NewVersionHandler(log *logger.Logger, catalog services.CatalogService, publish services.PublishService) *VersionHandler {
	return &VersionHandler{
		log:     log.With("handler", "VersionHandler"),
		catalog: catalog,
		publish: publish,
	}
}

func (h *VersionHandler) versionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("version_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *VersionHandler) Get(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	version, err := h.catalog.GetVersion(c.Request.Context(), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}

// DownloadEntry hands out a short-lived signed link for the entry artifact,
// so pre-release builds can be fetched without making the object public.
func (h *VersionHandler) DownloadEntry(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	url, err := h.catalog.SignedEntryURL(c.Request.Context(), id, entryURLTTL)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"url": url})
}

type publishRequest struct {
	Changelog string `json:"changelog"`
}

func (h *VersionHandler) Publish(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	version, err := h.publish.Publish(c.Request.Context(), id, req.Changelog)
	if err != nil {
		h.log.Warn("Publish failed", "error", err, "version_id", id)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}

func (h *VersionHandler) Unpublish(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	version, err := h.publish.Unpublish(c.Request.Context(), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}

func (h *VersionHandler) SetLatest(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	componentID := c.Param("component_id")
	if err := h.publish.SetLatest(c.Request.Context(), componentID, id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"latest": true})
}

func (h *VersionHandler) Delete(c *gin.Context) {
	id, ok := h.versionID(c)
	if !ok {
		return
	}
	if err := h.publish.DeleteVersion(c.Request.Context(), id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}
