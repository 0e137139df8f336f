package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/gcp"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

// VersionSeed carries the build data written into a version row when a
// validated package lands.
type VersionSeed struct {
	Version    string
	BuildHash  string
	BuildTime  time.Time
	CLIVersion string
	Changelog  string
}

// CatalogService maintains the component catalog and its version rows. All
// writes are expected to run inside the caller's transaction so that partial
// registrations never become visible.
type CatalogService interface {
	CreateComponent(dbc dbctx.Context, c *domain.Component) error
	GetExistingComponent(dbc dbctx.Context, componentID string) (*domain.Component, error)
	// CreateVersion inserts a draft row, or returns the existing draft for the
	// same (component, version) pair so a re-upload can overwrite it.
	CreateVersion(dbc dbctx.Context, componentID string, seed VersionSeed) (*domain.ComponentVersion, bool, error)
	UpdateVersion(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	ListComponents(ctx context.Context, filter repos.ComponentFilter) ([]*domain.Component, int64, error)
	GetComponent(ctx context.Context, componentID string) (*domain.Component, []*domain.ComponentVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*domain.ComponentVersion, error)
	// SignedEntryURL returns a time-limited download link for the version's
	// entry artifact, for builds not served off the public CDN.
	SignedEntryURL(ctx context.Context, id uuid.UUID, ttl time.Duration) (string, error)
	DeleteComponent(ctx context.Context, componentID string) error
}

type catalogService struct {
	db         *gorm.DB
	log        *logger.Logger
	components repos.ComponentRepo
	versions   repos.ComponentVersionRepo
	bucket     gcp.BucketService
}

func NewCatalogService(
	db *gorm.DB,
	baseLog *logger.Logger,
	components repos.ComponentRepo,
	versions repos.ComponentVersionRepo,
	bucket gcp.BucketService,
) CatalogService {
	return &catalogService{
		db:         db,
		log:        baseLog.With("service", "CatalogService"),
		components: components,
		versions:   versions,
		bucket:     bucket,
	}
}

func (s *catalogService) CreateComponent(dbc dbctx.Context, c *domain.Component) error {
	existing, err := s.components.GetByComponentID(dbc, c.ComponentID)
	if err != nil {
		return apperr.Infra("component_lookup_failed", err)
	}
	if existing != nil {
		return apperr.Conflict("component_id_taken", "component id %s is already in use", c.ComponentID)
	}
	if err := s.components.Create(dbc, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("component_id_taken", "component id %s is already in use", c.ComponentID)
		}
		return apperr.Infra("component_create_failed", err)
	}
	return nil
}

func (s *catalogService) GetExistingComponent(dbc dbctx.Context, componentID string) (*domain.Component, error) {
	c, err := s.components.GetByComponentID(dbc, componentID)
	if err != nil {
		return nil, apperr.Infra("component_lookup_failed", err)
	}
	if c == nil {
		return nil, apperr.NotFound("component_not_found", "component %s does not exist", componentID)
	}
	return c, nil
}

func (s *catalogService) CreateVersion(dbc dbctx.Context, componentID string, seed VersionSeed) (*domain.ComponentVersion, bool, error) {
	existing, err := s.versions.GetByComponentAndVersion(dbc, componentID, seed.Version)
	if err != nil {
		return nil, false, apperr.Infra("version_lookup_failed", err)
	}
	if existing != nil {
		if existing.Status == domain.VersionStatusPublished {
			return nil, false, apperr.Conflict("version_published",
				"version %s of component %s is already published and cannot be overwritten",
				seed.Version, componentID)
		}
		// Re-upload over an existing draft: refresh the build data in place.
		updates := map[string]interface{}{
			"build_hash":  seed.BuildHash,
			"build_time":  seed.BuildTime,
			"cli_version": seed.CLIVersion,
			"changelog":   seed.Changelog,
			"updated_at":  time.Now().UTC(),
		}
		if err := s.versions.Update(dbc, existing.ID, updates); err != nil {
			return nil, false, apperr.Infra("version_update_failed", err)
		}
		refreshed, err := s.versions.GetByID(dbc, existing.ID)
		if err != nil {
			return nil, false, apperr.Infra("version_lookup_failed", err)
		}
		return refreshed, true, nil
	}

	v := &domain.ComponentVersion{
		ComponentID: componentID,
		Version:     seed.Version,
		BuildHash:   seed.BuildHash,
		BuildTime:   seed.BuildTime,
		CLIVersion:  seed.CLIVersion,
		Changelog:   seed.Changelog,
		Status:      domain.VersionStatusDraft,
	}
	if err := s.versions.Create(dbc, v); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, apperr.Conflict("version_taken",
				"version %s of component %s already exists", seed.Version, componentID)
		}
		return nil, false, apperr.Infra("version_create_failed", err)
	}

	count, err := s.versions.CountByComponentID(dbc, componentID)
	if err != nil {
		return nil, false, apperr.Infra("version_count_failed", err)
	}
	if err := s.components.Update(dbc, componentID, map[string]interface{}{
		"version_count": count,
		"updated_at":    time.Now().UTC(),
	}); err != nil {
		return nil, false, apperr.Infra("component_update_failed", err)
	}
	return v, false, nil
}

func (s *catalogService) UpdateVersion(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if err := s.versions.Update(dbc, id, updates); err != nil {
		return apperr.Infra("version_update_failed", err)
	}
	return nil
}

func (s *catalogService) ListComponents(ctx context.Context, filter repos.ComponentFilter) ([]*domain.Component, int64, error) {
	results, total, err := s.components.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, 0, apperr.Infra("component_lookup_failed", err)
	}
	return results, total, nil
}

func (s *catalogService) GetComponent(ctx context.Context, componentID string) (*domain.Component, []*domain.ComponentVersion, error) {
	dbc := dbctx.Context{Ctx: ctx}
	c, err := s.components.GetByComponentID(dbc, componentID)
	if err != nil {
		return nil, nil, apperr.Infra("component_lookup_failed", err)
	}
	if c == nil {
		return nil, nil, apperr.NotFound("component_not_found", "component %s does not exist", componentID)
	}
	versions, err := s.versions.ListByComponentID(dbc, componentID)
	if err != nil {
		return nil, nil, apperr.Infra("version_lookup_failed", err)
	}
	return c, versions, nil
}

func (s *catalogService) GetVersion(ctx context.Context, id uuid.UUID) (*domain.ComponentVersion, error) {
	v, err := s.versions.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, apperr.Infra("version_lookup_failed", err)
	}
	if v == nil {
		return nil, apperr.NotFound("version_not_found", "version %s does not exist", id)
	}
	return v, nil
}

func (s *catalogService) SignedEntryURL(ctx context.Context, id uuid.UUID, ttl time.Duration) (string, error) {
	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return "", err
	}
	if v.EntryPath == "" {
		return "", apperr.State("version_has_no_artifacts", "version %s has no uploaded build", id)
	}
	url, err := s.bucket.SignedURL(artifactKey(v.ComponentID, v.Version, v.EntryPath), ttl)
	if err != nil {
		return "", apperr.Infra("artifact_sign_failed", err)
	}
	return url, nil
}

func (s *catalogService) DeleteComponent(ctx context.Context, componentID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		c, err := s.components.LockByComponentID(txc, componentID)
		if err != nil {
			return apperr.Infra("component_lookup_failed", err)
		}
		if c == nil {
			return apperr.NotFound("component_not_found", "component %s does not exist", componentID)
		}
		published, err := s.versions.CountPublishedByComponentID(txc, componentID)
		if err != nil {
			return apperr.Infra("version_count_failed", err)
		}
		if published > 0 {
			return apperr.State("component_has_published_versions",
				"component %s still has %d published version(s); unpublish them first", componentID, published)
		}
		if err := s.versions.SoftDeleteByComponentID(txc, componentID); err != nil {
			return apperr.Infra("version_delete_failed", err)
		}
		if err := s.components.SoftDeleteByComponentID(txc, componentID); err != nil {
			return apperr.Infra("component_delete_failed", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Artifact cleanup runs after commit; the tombstoned rows remain the source
	// of truth if storage lags behind.
	if s.bucket != nil {
		prefix := fmt.Sprintf("components/%s/", componentID)
		if err := s.bucket.DeletePrefix(ctx, prefix); err != nil {
			s.log.Warn("Failed to delete component artifacts", "component_id", componentID, "error", err)
		}
	}
	s.log.Info("Component deleted", "component_id", componentID)
	return nil
}
