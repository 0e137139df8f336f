package app

import (
	httpH "github.com/yungbote/component-registry/internal/http/handlers"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type Handlers struct {
	Application    *httpH.ApplicationHandler
	Component      *httpH.ComponentHandler
	Version        *httpH.VersionHandler
	Classification *httpH.ClassificationHandler
	Health         *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Application:    httpH.NewApplicationHandler(log, s.Application),
		Component:      httpH.NewComponentHandler(log, s.Catalog, s.Upload),
		Version:        httpH.NewVersionHandler(log, s.Catalog, s.Publish),
		Classification: httpH.NewClassificationHandler(log, s.Classification),
		Health:         httpH.NewHealthHandler(),
	}
}
