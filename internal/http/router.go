package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/component-registry/internal/http/handlers"
	httpMW "github.com/yungbote/component-registry/internal/http/middleware"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	ApplicationHandler    *httpH.ApplicationHandler
	ComponentHandler      *httpH.ComponentHandler
	VersionHandler        *httpH.VersionHandler
	ClassificationHandler *httpH.ClassificationHandler
	HealthHandler         *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("component-registry"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Catalog reads are public.
	if cfg.ComponentHandler != nil {
		api.GET("/components", cfg.ComponentHandler.List)
		api.GET("/components/:component_id", cfg.ComponentHandler.Get)
	}
	if cfg.VersionHandler != nil {
		api.GET("/versions/:version_id", cfg.VersionHandler.Get)
	}
	if cfg.ClassificationHandler != nil {
		api.GET("/categories", cfg.ClassificationHandler.List)
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.ApplicationHandler != nil {
		protected.POST("/applications", cfg.ApplicationHandler.Create)
		protected.GET("/applications", cfg.ApplicationHandler.List)
		protected.GET("/applications/:application_no", cfg.ApplicationHandler.Get)
		protected.PUT("/applications/:application_no", cfg.ApplicationHandler.Update)
		protected.POST("/applications/:application_no/cancel", cfg.ApplicationHandler.Cancel)
		protected.POST("/applications/:application_no/self-review", cfg.ApplicationHandler.SelfReview)
		protected.GET("/applications/:application_no/supplement", cfg.ApplicationHandler.ExportSupplement)
		if cfg.AuthMiddleware != nil {
			protected.POST("/applications/:application_no/review",
				cfg.AuthMiddleware.RequireRole(httpMW.RoleReviewer), cfg.ApplicationHandler.Review)
		}
	}

	if cfg.ComponentHandler != nil {
		protected.POST("/components/upload", cfg.ComponentHandler.Upload)
		protected.DELETE("/components/:component_id", cfg.ComponentHandler.Delete)
	}

	if cfg.VersionHandler != nil {
		protected.GET("/versions/:version_id/entry-url", cfg.VersionHandler.DownloadEntry)
		protected.POST("/versions/:version_id/publish", cfg.VersionHandler.Publish)
		protected.POST("/versions/:version_id/unpublish", cfg.VersionHandler.Unpublish)
		protected.POST("/components/:component_id/versions/:version_id/latest", cfg.VersionHandler.SetLatest)
		protected.DELETE("/versions/:version_id", cfg.VersionHandler.Delete)
	}

	return r
}
