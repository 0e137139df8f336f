package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

// PublishService coordinates the version lifecycle: publish, unpublish,
// latest-pointer moves and deletion. Every operation runs in a single
// transaction that locks the owning component row, recomputes the published
// count from the version table, and writes the denormalized counters back.
type PublishService interface {
	Publish(ctx context.Context, versionID uuid.UUID, changelog string) (*domain.ComponentVersion, error)
	Unpublish(ctx context.Context, versionID uuid.UUID) (*domain.ComponentVersion, error)
	SetLatest(ctx context.Context, componentID string, versionID uuid.UUID) error
	DeleteVersion(ctx context.Context, versionID uuid.UUID) error
}

type publishService struct {
	db           *gorm.DB
	log          *logger.Logger
	components   repos.ComponentRepo
	versions     repos.ComponentVersionRepo
	applications repos.ApplicationRepo
}

func NewPublishService(
	db *gorm.DB,
	baseLog *logger.Logger,
	components repos.ComponentRepo,
	versions repos.ComponentVersionRepo,
	applications repos.ApplicationRepo,
) PublishService {
	return &publishService{
		db:           db,
		log:          baseLog.With("service", "PublishService"),
		components:   components,
		versions:     versions,
		applications: applications,
	}
}

// lockPair locks the version row and then its owning component row, in that
// fixed order so concurrent lifecycle operations cannot deadlock.
func (s *publishService) lockPair(txc dbctx.Context, versionID uuid.UUID) (*domain.ComponentVersion, *domain.Component, error) {
	version, err := s.versions.LockByID(txc, versionID)
	if err != nil {
		return nil, nil, apperr.Infra("version_lookup_failed", err)
	}
	if version == nil {
		return nil, nil, apperr.NotFound("version_not_found", "version %s does not exist", versionID)
	}
	component, err := s.components.LockByComponentID(txc, version.ComponentID)
	if err != nil {
		return nil, nil, apperr.Infra("component_lookup_failed", err)
	}
	if component == nil {
		return nil, nil, apperr.Consistency("component_missing", "componentId",
			"version %s references component %s which does not exist", versionID, version.ComponentID)
	}
	return version, component, nil
}

// recountPublished recomputes published_count from the version table and
// writes it to the component row. The stored counter is never trusted as
// input.
func (s *publishService) recountPublished(txc dbctx.Context, componentID string) (int64, error) {
	published, err := s.versions.CountPublishedByComponentID(txc, componentID)
	if err != nil {
		return 0, apperr.Infra("version_count_failed", err)
	}
	if err := s.components.Update(txc, componentID, map[string]interface{}{
		"published_version_count": published,
		"updated_at":              time.Now().UTC(),
	}); err != nil {
		return 0, apperr.Infra("component_update_failed", err)
	}
	return published, nil
}

func (s *publishService) Publish(ctx context.Context, versionID uuid.UUID, changelog string) (*domain.ComponentVersion, error) {
	var published *domain.ComponentVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		version, component, err := s.lockPair(txc, versionID)
		if err != nil {
			return err
		}
		if version.Status != domain.VersionStatusDraft {
			return apperr.State("version_not_draft",
				"version %s of component %s is %s; only drafts can be published",
				version.Version, component.ComponentID, version.Status)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       domain.VersionStatusPublished,
			"published_at": now,
			"updated_at":   now,
		}
		if changelog != "" {
			updates["changelog"] = changelog
		}
		if err := s.versions.Update(txc, version.ID, updates); err != nil {
			return apperr.Infra("version_update_failed", err)
		}

		publishedCount, err := s.recountPublished(txc, component.ComponentID)
		if err != nil {
			return err
		}

		// First published version becomes the latest pointer. A failure here is
		// logged and absorbed so the publish itself still commits.
		if publishedCount == 1 {
			if err := s.versions.Update(txc, version.ID, map[string]interface{}{"is_latest": true}); err != nil {
				s.log.Warn("Failed to mark first published version as latest",
					"version_id", version.ID, "error", err)
			}
		}

		app, err := s.applications.GetApprovedByVersionID(txc, version.ID)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		if app != nil {
			if err := s.applications.Update(txc, app.ID, map[string]interface{}{
				"development_status": domain.StatusCompleted,
				"updated_at":         now,
			}); err != nil {
				return apperr.Infra("application_update_failed", err)
			}
			s.log.Info("Application completed by publish",
				"application_no", app.ApplicationNo, "version_id", version.ID)
		}

		published, err = s.versions.GetByID(txc, version.ID)
		if err != nil {
			return apperr.Infra("version_lookup_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Version published",
		"version_id", published.ID,
		"component_id", published.ComponentID,
		"version", published.Version,
	)
	return published, nil
}

func (s *publishService) Unpublish(ctx context.Context, versionID uuid.UUID) (*domain.ComponentVersion, error) {
	var result *domain.ComponentVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		version, component, err := s.lockPair(txc, versionID)
		if err != nil {
			return err
		}
		if version.Status != domain.VersionStatusPublished {
			return apperr.State("version_not_published",
				"version %s of component %s is %s; only published versions can be unpublished",
				version.Version, component.ComponentID, version.Status)
		}
		if version.IsLatest {
			return apperr.State("version_is_latest",
				"version %s is the latest version of component %s; point latest elsewhere first",
				version.Version, component.ComponentID)
		}

		if err := s.versions.Update(txc, version.ID, map[string]interface{}{
			"status":       domain.VersionStatusDraft,
			"published_at": nil,
			"updated_at":   time.Now().UTC(),
		}); err != nil {
			return apperr.Infra("version_update_failed", err)
		}
		if _, err := s.recountPublished(txc, component.ComponentID); err != nil {
			return err
		}
		result, err = s.versions.GetByID(txc, version.ID)
		if err != nil {
			return apperr.Infra("version_lookup_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Version unpublished", "version_id", result.ID, "component_id", result.ComponentID)
	return result, nil
}

func (s *publishService) SetLatest(ctx context.Context, componentID string, versionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		component, err := s.components.LockByComponentID(txc, componentID)
		if err != nil {
			return apperr.Infra("component_lookup_failed", err)
		}
		if component == nil {
			return apperr.NotFound("component_not_found", "component %s does not exist", componentID)
		}
		version, err := s.versions.LockByID(txc, versionID)
		if err != nil {
			return apperr.Infra("version_lookup_failed", err)
		}
		if version == nil {
			return apperr.NotFound("version_not_found", "version %s does not exist", versionID)
		}
		if version.ComponentID != componentID {
			return apperr.ValidationField("latest_invalid", "versionId",
				"version %s does not belong to component %s", versionID, componentID)
		}
		if version.Status != domain.VersionStatusPublished {
			return apperr.State("version_not_published",
				"only a published version can be marked latest; version %s is %s",
				version.Version, version.Status)
		}

		if err := s.versions.ClearLatest(txc, componentID); err != nil {
			return apperr.Infra("version_update_failed", err)
		}
		return s.versions.Update(txc, version.ID, map[string]interface{}{
			"is_latest":  true,
			"updated_at": time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("Latest pointer moved", "component_id", componentID, "version_id", versionID)
	return nil
}

func (s *publishService) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		version, component, err := s.lockPair(txc, versionID)
		if err != nil {
			return err
		}
		if version.IsLatest {
			return apperr.State("version_is_latest",
				"version %s is the latest version of component %s and cannot be deleted",
				version.Version, component.ComponentID)
		}
		if err := s.versions.SoftDeleteByID(txc, version.ID); err != nil {
			return apperr.Infra("version_delete_failed", err)
		}

		total, err := s.versions.CountByComponentID(txc, component.ComponentID)
		if err != nil {
			return apperr.Infra("version_count_failed", err)
		}
		published, err := s.versions.CountPublishedByComponentID(txc, component.ComponentID)
		if err != nil {
			return apperr.Infra("version_count_failed", err)
		}
		return s.components.Update(txc, component.ComponentID, map[string]interface{}{
			"version_count":           total,
			"published_version_count": published,
			"updated_at":              time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("Version deleted", "version_id", versionID)
	return nil
}
