package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/component-registry/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

type ErrorEnvelope struct {
	Error    APIError `json:"error"`
	Warnings []string `json:"warnings,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondAppError maps a typed service error onto an HTTP status. Unknown
// errors fall through to 500 so infra details never leak a success.
func RespondAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	apiErr := APIError{Message: "unknown error"}
	if err != nil {
		apiErr.Message = err.Error()
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		apiErr.Code = ae.Code
		apiErr.Field = ae.Field
		switch ae.Kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindConsistency, apperr.KindState, apperr.KindConflict:
			status = http.StatusConflict
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindPermission:
			status = http.StatusForbidden
		case apperr.KindInfra:
			status = http.StatusInternalServerError
			// Infra details stay in the logs.
			apiErr.Message = "internal error"
		}
	}
	c.JSON(status, ErrorEnvelope{Error: apiErr})
}
