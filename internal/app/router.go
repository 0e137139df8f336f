package app

import (
	internalhttp "github.com/yungbote/component-registry/internal/http"
	httpMW "github.com/yungbote/component-registry/internal/http/middleware"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, h Handlers) *internalhttp.Server {
	log.Info("Wiring router...")
	auth := httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey)
	return internalhttp.NewServer(internalhttp.RouterConfig{
		Log:                   log,
		AuthMiddleware:        auth,
		ApplicationHandler:    h.Application,
		ComponentHandler:      h.Component,
		VersionHandler:        h.Version,
		ClassificationHandler: h.Classification,
		HealthHandler:         h.Health,
	})
}
