package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/http/response"
	"github.com/yungbote/component-registry/internal/platform/ctxutil"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/services"
)

type ApplicationHandler struct {
	log          *logger.Logger
	applications services.ApplicationService
}

func NewApplicationHandler(log *logger.Logger, applications services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		log:          log.With("handler", "ApplicationHandler"),
		applications: applications,
	}
}

type createApplicationRequest struct {
	ApplicationType   string     `json:"application_type" binding:"required"`
	ComponentID       string     `json:"component_id" binding:"required"`
	ComponentName     string     `json:"component_name"`
	CategoryLevel1    string     `json:"category_level1"`
	CategoryLevel2    string     `json:"category_level2"`
	TargetVersion     string     `json:"target_version"`
	ExistingVersionID *uuid.UUID `json:"existing_version_id"`
	Description       string     `json:"description"`
	Changelog         string     `json:"changelog"`
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.applications.Create(c.Request.Context(), services.CreateApplicationInput{
		ApplicationType:   req.ApplicationType,
		ComponentID:       req.ComponentID,
		ComponentName:     req.ComponentName,
		CategoryLevel1:    req.CategoryLevel1,
		CategoryLevel2:    req.CategoryLevel2,
		TargetVersion:     req.TargetVersion,
		ExistingVersionID: req.ExistingVersionID,
		Description:       req.Description,
		Changelog:         req.Changelog,
		ApplicantID:       rd.UserID,
	})
	if err != nil {
		h.log.Warn("Create application failed", "error", err, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"application": app})
}

func (h *ApplicationHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	filter := repos.ApplicationFilter{
		Status: domain.ApplicationStatus(c.Query("status")),
		Type:   c.Query("type"),
		Offset: intQuery(c, "offset", 0),
		Limit:  intQuery(c, "limit", 20),
	}
	// Reviewers see every application; applicants only their own.
	if rd.Role != "reviewer" {
		filter.ApplicantID = rd.UserID
	}
	apps, total, err := h.applications.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("List applications failed", "error", err)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"applications": apps, "total": total})
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("application_no"))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"application": app})
}

type updateApplicationRequest struct {
	ComponentName  *string `json:"component_name"`
	CategoryLevel1 *string `json:"category_level1"`
	CategoryLevel2 *string `json:"category_level2"`
	Description    *string `json:"description"`
	Changelog      *string `json:"changelog"`
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.applications.Update(c.Request.Context(), c.Param("application_no"), rd.UserID, services.UpdateApplicationInput{
		ComponentName:  req.ComponentName,
		CategoryLevel1: req.CategoryLevel1,
		CategoryLevel2: req.CategoryLevel2,
		Description:    req.Description,
		Changelog:      req.Changelog,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"application": app})
}

func (h *ApplicationHandler) Cancel(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.applications.Cancel(c.Request.Context(), c.Param("application_no"), rd.UserID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cancelled": true})
}

type reviewRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

func (h *ApplicationHandler) Review(c *gin.Context) {
	h.review(c, false)
}

// SelfReview lets an applicant approve their own application, for teams that
// run without a separate reviewer. The review record marks it as such.
func (h *ApplicationHandler) SelfReview(c *gin.Context) {
	h.review(c, true)
}

func (h *ApplicationHandler) review(c *gin.Context, allowSelf bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.applications.Review(c.Request.Context(), c.Param("application_no"), services.ReviewInput{
		Action:          req.Action,
		Comment:         req.Comment,
		ReviewerID:      rd.UserID,
		AllowSelfReview: allowSelf,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"application": app})
}

func (h *ApplicationHandler) ExportSupplement(c *gin.Context) {
	doc, err := h.applications.ExportSupplement(c.Request.Context(), c.Param("application_no"))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, doc)
}
