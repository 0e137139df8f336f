package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/gcp"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/upload"
)

const uploadConcurrency = 4

// UploadResult is what the client sees after a package lands.
type UploadResult struct {
	Application *domain.DevelopmentApplication
	Version     *domain.ComponentVersion
	Warnings    []string
}

// UploadService receives validated packages, registers the catalog rows in a
// single transaction and pushes the artifacts to object storage.
type UploadService interface {
	HandleUpload(ctx context.Context, applicationNo, fileName string, data []byte) (*UploadResult, error)
}

type uploadService struct {
	db           *gorm.DB
	log          *logger.Logger
	validator    *upload.Validator
	applications repos.ApplicationRepo
	components   repos.ComponentRepo
	versions     repos.ComponentVersionRepo
	catalog      CatalogService
	bucket       gcp.BucketService
}

func NewUploadService(
	db *gorm.DB,
	baseLog *logger.Logger,
	validator *upload.Validator,
	applications repos.ApplicationRepo,
	components repos.ComponentRepo,
	versions repos.ComponentVersionRepo,
	catalog CatalogService,
	bucket gcp.BucketService,
) UploadService {
	return &uploadService{
		db:           db,
		log:          baseLog.With("service", "UploadService"),
		validator:    validator,
		applications: applications,
		components:   components,
		versions:     versions,
		catalog:      catalog,
		bucket:       bucket,
	}
}

func (s *uploadService) HandleUpload(ctx context.Context, applicationNo, fileName string, data []byte) (*UploadResult, error) {
	res, err := s.validator.Validate(ctx, data, applicationNo)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Warnings: res.Warnings}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}

		// Re-read under lock: the validation above ran outside the transaction
		// and the application may have moved since.
		app, err := s.applications.LockByApplicationNo(txc, applicationNo)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		if app == nil {
			return apperr.NotFound("application_not_found", "application %s does not exist", applicationNo)
		}
		if !domain.StatusIn(app.DevelopmentStatus, domain.UploadableStatuses) {
			return apperr.State("application_not_uploadable",
				"application %s is %s and cannot accept an upload",
				app.ApplicationNo, app.DevelopmentStatus.Label())
		}

		version, err := s.registerVersion(txc, app, res)
		if err != nil {
			return err
		}

		if err := s.pushArtifacts(ctx, app.ComponentID, version.Version, res); err != nil {
			return err
		}

		urls := s.artifactURLs(app.ComponentID, version.Version, res.BuildMeta)
		if err := s.catalog.UpdateVersion(txc, version.ID, map[string]interface{}{
			"entry_path":  res.BuildMeta.Files.Entry,
			"entry_url":   urls.entry,
			"style_url":   urls.style,
			"preview_url": urls.preview,
			"updated_at":  time.Now().UTC(),
		}); err != nil {
			return err
		}
		if app.ApplicationType == domain.ApplicationTypeNew && urls.preview != "" {
			if err := s.components.Update(txc, app.ComponentID, map[string]interface{}{
				"thumbnail_url": urls.preview,
				"updated_at":    time.Now().UTC(),
			}); err != nil {
				return apperr.Infra("component_update_failed", err)
			}
		}

		record := domain.UploadRecord{
			FileName:   fileName,
			SizeBytes:  res.Archive.TotalSize(),
			FileCount:  res.Archive.FileCount(),
			BuildHash:  res.BuildMeta.BuildInfo.Hash,
			UploadedAt: time.Now().UTC(),
		}
		rawRecord, err := json.Marshal(record)
		if err != nil {
			return apperr.Infra("upload_record_encode_failed", err)
		}
		updates := map[string]interface{}{
			"upload_info":          datatypes.JSON(rawRecord),
			"component_version_id": version.ID,
			"updated_at":           time.Now().UTC(),
		}
		// An upload against an already approved application does not regress
		// its status; earlier-stage applications advance to uploaded for review.
		if app.DevelopmentStatus != domain.StatusApproved {
			updates["development_status"] = domain.StatusUploaded
		}
		if err := s.applications.Update(txc, app.ID, updates); err != nil {
			return apperr.Infra("application_update_failed", err)
		}

		result.Version, err = s.versions.GetByID(txc, version.ID)
		if err != nil {
			return apperr.Infra("version_lookup_failed", err)
		}
		result.Application, err = s.applications.GetByID(txc, app.ID)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Package upload accepted",
		"application_no", applicationNo,
		"component_id", result.Version.ComponentID,
		"version", result.Version.Version,
		"file_count", res.Archive.FileCount(),
	)
	return result, nil
}

// registerVersion creates or refreshes the catalog rows that receive the
// upload, according to the application type.
func (s *uploadService) registerVersion(txc dbctx.Context, app *domain.DevelopmentApplication, res *upload.Result) (*domain.ComponentVersion, error) {
	seed := VersionSeed{
		Version:    app.TargetVersion,
		BuildHash:  res.BuildMeta.BuildInfo.Hash,
		BuildTime:  res.BuildMeta.BuildTime(),
		CLIVersion: res.BuildMeta.BuildInfo.CLIVersion,
		Changelog:  app.Changelog,
	}

	switch app.ApplicationType {
	case domain.ApplicationTypeNew:
		component := &domain.Component{
			ComponentID:        app.ComponentID,
			Name:               app.ComponentName,
			Description:        app.Description,
			CategoryLevel1:     app.CategoryLevel1,
			CategoryLevel2:     app.CategoryLevel2,
			CategoryLevel1Name: app.CategoryLevel1Name,
			CategoryLevel2Name: app.CategoryLevel2Name,
		}
		existing, err := s.components.GetByComponentID(txc, app.ComponentID)
		if err != nil {
			return nil, apperr.Infra("component_lookup_failed", err)
		}
		if existing == nil {
			if err := s.catalog.CreateComponent(txc, component); err != nil {
				return nil, err
			}
		} else if app.ComponentVersionID == nil {
			// A component row the application did not create itself means the
			// id was taken between approval and upload.
			return nil, apperr.Conflict("component_id_taken",
				"component id %s is already in use", app.ComponentID)
		}
		version, _, err := s.catalog.CreateVersion(txc, app.ComponentID, seed)
		return version, err

	case domain.ApplicationTypeVersion:
		if _, err := s.catalog.GetExistingComponent(txc, app.ComponentID); err != nil {
			return nil, err
		}
		version, reused, err := s.catalog.CreateVersion(txc, app.ComponentID, seed)
		if err != nil {
			return nil, err
		}
		if reused {
			s.log.Info("Draft version refreshed by re-upload",
				"component_id", app.ComponentID, "version", seed.Version)
		}
		return version, nil

	case domain.ApplicationTypeReplace:
		if app.ExistingVersionID == nil {
			return nil, apperr.Consistency("replace_target_missing", "existingVersionId",
				"replacement application %s has no target version", app.ApplicationNo)
		}
		version, err := s.versions.LockByID(txc, *app.ExistingVersionID)
		if err != nil {
			return nil, apperr.Infra("version_lookup_failed", err)
		}
		if version == nil {
			return nil, apperr.NotFound("version_not_found", "version %s does not exist", app.ExistingVersionID)
		}
		if version.Status != domain.VersionStatusDraft {
			return nil, apperr.State("version_not_draft",
				"version %s is %s and can no longer be replaced", version.ID, version.Status)
		}
		if err := s.catalog.UpdateVersion(txc, version.ID, map[string]interface{}{
			"build_hash":  seed.BuildHash,
			"build_time":  seed.BuildTime,
			"cli_version": seed.CLIVersion,
			"changelog":   seed.Changelog,
			"updated_at":  time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return s.versions.GetByID(txc, version.ID)

	default:
		return nil, apperr.Consistency("application_type_unknown", "applicationType",
			"application %s has unknown type %q", app.ApplicationNo, app.ApplicationType)
	}
}

// pushArtifacts uploads every declared file to object storage under the
// canonical components/{componentId}/{version}/ prefix. On failure the
// objects written so far are removed again, so a rolled-back upload leaves
// no partial artifact set behind.
func (s *uploadService) pushArtifacts(ctx context.Context, componentID, version string, res *upload.Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	var keys []string
	for _, declared := range res.BuildMeta.DeclaredFiles() {
		resolved, ok := res.Archive.Resolve(declared)
		if !ok {
			return apperr.Consistency("declared_file_missing", declared,
				"file %q disappeared between validation and upload", declared)
		}
		content, err := res.Archive.ReadFile(resolved)
		if err != nil {
			return err
		}
		key := artifactKey(componentID, version, declared)
		keys = append(keys, key)
		g.Go(func() error {
			if err := s.bucket.UploadFile(gctx, key, contentTypeFor(declared), bytes.NewReader(content)); err != nil {
				return apperr.Infra("artifact_upload_failed", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.scrubArtifacts(ctx, keys)
		return err
	}
	return nil
}

// scrubArtifacts best-effort deletes the given objects after a failed push.
func (s *uploadService) scrubArtifacts(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.bucket.DeleteFile(ctx, key); err != nil {
			s.log.Warn("Artifact cleanup failed", "key", key, "error", err)
		}
	}
}

type artifactURLSet struct {
	entry   string
	style   string
	preview string
}

func (s *uploadService) artifactURLs(componentID, version string, meta *upload.BuildMetaDoc) artifactURLSet {
	urls := artifactURLSet{
		entry: s.bucket.GetPublicURL(artifactKey(componentID, version, meta.Files.Entry)),
	}
	if meta.Files.Style != "" {
		urls.style = s.bucket.GetPublicURL(artifactKey(componentID, version, meta.Files.Style))
	}
	if meta.Files.Preview != "" {
		urls.preview = s.bucket.GetPublicURL(artifactKey(componentID, version, meta.Files.Preview))
	}
	return urls
}

func artifactKey(componentID, version, relativePath string) string {
	return fmt.Sprintf("components/%s/%s/%s", componentID, version, relativePath)
}

func contentTypeFor(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
