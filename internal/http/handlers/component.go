package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/http/response"
	"github.com/yungbote/component-registry/internal/platform/ctxutil"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/services"
)

type ComponentHandler struct {
	log     *logger.Logger
	catalog services.CatalogService
	uploads services.UploadService
}

func NewComponentHandler(log *logger.Logger, catalog services.CatalogService, uploads services.UploadService) *ComponentHandler {
	return &ComponentHandler{
		log:     log.With("handler", "ComponentHandler"),
		catalog: catalog,
		uploads: uploads,
	}
}

func (h *ComponentHandler) List(c *gin.Context) {
	filter := repos.ComponentFilter{
		CategoryLevel1: c.Query("category_level1"),
		CategoryLevel2: c.Query("category_level2"),
		Keyword:        c.Query("keyword"),
		Offset:         intQuery(c, "offset", 0),
		Limit:          intQuery(c, "limit", 20),
	}
	components, total, err := h.catalog.ListComponents(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("List components failed", "error", err)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"components": components, "total": total})
}

func (h *ComponentHandler) Get(c *gin.Context) {
	component, versions, err := h.catalog.GetComponent(c.Request.Context(), c.Param("component_id"))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"component": component, "versions": versions})
}

// Upload receives the package archive as multipart form data. The application
// number travels as a form field alongside the file.
func (h *ComponentHandler) Upload(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	applicationNo := c.PostForm("application_no")
	if applicationNo == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing form field application_no"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.uploads.HandleUpload(c.Request.Context(), applicationNo, fileHeader.Filename, data)
	if err != nil {
		h.log.Warn("Package upload rejected", "error", err, "application_no", applicationNo)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"application": result.Application,
		"version":     result.Version,
		"warnings":    result.Warnings,
	})
}

func (h *ComponentHandler) Delete(c *gin.Context) {
	if err := h.catalog.DeleteComponent(c.Request.Context(), c.Param("component_id")); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
