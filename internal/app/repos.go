package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type Repos struct {
	Component        repos.ComponentRepo
	ComponentVersion repos.ComponentVersionRepo
	Application      repos.ApplicationRepo
	Category         repos.CategoryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Component:        repos.NewComponentRepo(db, log),
		ComponentVersion: repos.NewComponentVersionRepo(db, log),
		Application:      repos.NewApplicationRepo(db, log),
		Category:         repos.NewCategoryRepo(db, log),
	}
}
