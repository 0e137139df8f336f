package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/component-registry/internal/http/response"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/services"
)

type ClassificationHandler struct {
	log       *logger.Logger
	directory services.ClassificationService
}

func NewClassificationHandler(log *logger.Logger, directory services.ClassificationService) *ClassificationHandler {
	return &ClassificationHandler{
		log:       log.With("handler", "ClassificationHandler"),
		directory: directory,
	}
}

func (h *ClassificationHandler) List(c *gin.Context) {
	categories, err := h.directory.List(c.Request.Context())
	if err != nil {
		h.log.Error("List categories failed", "error", err)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"categories": categories})
}
