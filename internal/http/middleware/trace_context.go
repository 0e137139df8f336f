package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/component-registry/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a trace id and a request id and
// echoes both back in the response headers. The otel middleware runs earlier
// in the chain, so an active span's trace id takes precedence; a
// caller-supplied X-Trace-Id is honored only when no span is recording.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: requestID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Set("request_id", requestID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, requestID)
		c.Next()
	}
}

func requestTraceID(c *gin.Context) string {
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	if fromHeader := strings.TrimSpace(c.GetHeader(headerTraceID)); fromHeader != "" {
		return fromHeader
	}
	return uuid.New().String()
}
