package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/upload"
)

const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"

	defaultInitialVersion = "1.0.0"
)

type CreateApplicationInput struct {
	ApplicationType   string
	ComponentID       string
	ComponentName     string
	CategoryLevel1    string
	CategoryLevel2    string
	TargetVersion     string
	ExistingVersionID *uuid.UUID
	Description       string
	Changelog         string
	ApplicantID       uuid.UUID
}

type UpdateApplicationInput struct {
	ComponentName  *string
	CategoryLevel1 *string
	CategoryLevel2 *string
	Description    *string
	Changelog      *string
}

type ReviewInput struct {
	Action          string
	Comment         string
	ReviewerID      uuid.UUID
	AllowSelfReview bool
}

// ApplicationService owns the development-application approval state machine.
// All state checks are preconditions evaluated before any mutation.
type ApplicationService interface {
	Create(ctx context.Context, in CreateApplicationInput) (*domain.DevelopmentApplication, error)
	Get(ctx context.Context, applicationNo string) (*domain.DevelopmentApplication, error)
	List(ctx context.Context, filter repos.ApplicationFilter) ([]*domain.DevelopmentApplication, int64, error)
	Update(ctx context.Context, applicationNo string, userID uuid.UUID, in UpdateApplicationInput) (*domain.DevelopmentApplication, error)
	Review(ctx context.Context, applicationNo string, in ReviewInput) (*domain.DevelopmentApplication, error)
	Cancel(ctx context.Context, applicationNo string, userID uuid.UUID) error
	ExportSupplement(ctx context.Context, applicationNo string) (*upload.SupplementDoc, error)

	// GetApplicationByID implements upload.ApplicationSource.
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*domain.DevelopmentApplication, error)
}

type applicationService struct {
	db           *gorm.DB
	log          *logger.Logger
	applications repos.ApplicationRepo
	components   repos.ComponentRepo
	versions     repos.ComponentVersionRepo
	directory    ClassificationService
	signer       *SupplementSigner
}

func NewApplicationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	applications repos.ApplicationRepo,
	components repos.ComponentRepo,
	versions repos.ComponentVersionRepo,
	directory ClassificationService,
	signer *SupplementSigner,
) ApplicationService {
	return &applicationService{
		db:           db,
		log:          baseLog.With("service", "ApplicationService"),
		applications: applications,
		components:   components,
		versions:     versions,
		directory:    directory,
		signer:       signer,
	}
}

func (s *applicationService) Create(ctx context.Context, in CreateApplicationInput) (*domain.DevelopmentApplication, error) {
	if in.ApplicantID == uuid.Nil {
		return nil, apperr.ValidationField("application_invalid", "applicantId", "applicant id is required")
	}
	if in.ComponentID == "" {
		return nil, apperr.ValidationField("application_invalid", "componentId", "component id is required")
	}

	app := &domain.DevelopmentApplication{
		ApplicationType:   in.ApplicationType,
		ComponentID:       in.ComponentID,
		ComponentName:     in.ComponentName,
		TargetVersion:     in.TargetVersion,
		ExistingVersionID: in.ExistingVersionID,
		Description:       in.Description,
		Changelog:         in.Changelog,
		DevelopmentStatus: domain.StatusPendingInfo,
		ApplicantID:       in.ApplicantID,
	}

	dbc := dbctx.Context{Ctx: ctx}
	switch in.ApplicationType {
	case domain.ApplicationTypeNew:
		if err := s.prepareNew(ctx, dbc, app, in); err != nil {
			return nil, err
		}
	case domain.ApplicationTypeVersion:
		if err := s.prepareVersion(dbc, app, in); err != nil {
			return nil, err
		}
	case domain.ApplicationTypeReplace:
		if err := s.prepareReplace(dbc, app, in); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.ValidationField("application_invalid", "applicationType",
			"application type must be one of NEW, VERSION, REPLACE")
	}

	// Reservation check against in-flight applications. The uniqueness
	// constraint on component_version remains the final authority at upload
	// time.
	if app.ApplicationType != domain.ApplicationTypeReplace {
		reserved, err := s.applications.HasActiveReservation(dbc, app.ComponentID, app.TargetVersion, uuid.Nil)
		if err != nil {
			return nil, apperr.Infra("application_lookup_failed", err)
		}
		if reserved {
			return nil, apperr.Conflict("version_reserved",
				"version %s of component %s is already claimed by another application",
				app.TargetVersion, app.ComponentID)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		day := time.Now().UTC().Format("20060102")
		seq, err := s.applications.NextSequence(txc, day)
		if err != nil {
			return apperr.Infra("application_no_allocation_failed", err)
		}
		app.ApplicationNo = fmt.Sprintf("APP-%s-%04d", day, seq)
		if err := s.applications.Create(txc, app); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("application_no_taken", "application number %s already exists", app.ApplicationNo)
			}
			return apperr.Infra("application_create_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Application created",
		"application_no", app.ApplicationNo,
		"type", app.ApplicationType,
		"component_id", app.ComponentID,
		"target_version", app.TargetVersion,
	)
	return app, nil
}

func (s *applicationService) prepareNew(ctx context.Context, dbc dbctx.Context, app *domain.DevelopmentApplication, in CreateApplicationInput) error {
	if in.ComponentName == "" {
		return apperr.ValidationField("application_invalid", "componentName", "a NEW application requires a component name")
	}
	if in.CategoryLevel1 == "" || in.CategoryLevel2 == "" {
		return apperr.ValidationField("application_invalid", "classification", "a NEW application requires a two-level classification")
	}
	pair, err := s.directory.ValidatePair(ctx, in.CategoryLevel1, in.CategoryLevel2)
	if err != nil {
		return err
	}
	app.CategoryLevel1 = pair.Level1
	app.CategoryLevel2 = pair.Level2
	app.CategoryLevel1Name = pair.Level1Name
	app.CategoryLevel2Name = pair.Level2Name

	if app.TargetVersion == "" {
		app.TargetVersion = defaultInitialVersion
	}
	if !upload.IsSemver(app.TargetVersion) {
		return apperr.ValidationField("application_invalid", "targetVersion", "%q is not a semantic version", app.TargetVersion)
	}

	existing, err := s.components.GetByComponentID(dbc, app.ComponentID)
	if err != nil {
		return apperr.Infra("component_lookup_failed", err)
	}
	if existing != nil {
		return apperr.Conflict("component_id_taken", "component id %s is already in use", app.ComponentID)
	}
	return nil
}

func (s *applicationService) prepareVersion(dbc dbctx.Context, app *domain.DevelopmentApplication, in CreateApplicationInput) error {
	if in.TargetVersion == "" {
		return apperr.ValidationField("application_invalid", "targetVersion", "a VERSION application requires an explicit target version")
	}
	if !upload.IsSemver(in.TargetVersion) {
		return apperr.ValidationField("application_invalid", "targetVersion", "%q is not a semantic version", in.TargetVersion)
	}
	component, err := s.components.GetByComponentID(dbc, app.ComponentID)
	if err != nil {
		return apperr.Infra("component_lookup_failed", err)
	}
	if component == nil {
		return apperr.NotFound("component_not_found", "component %s does not exist", app.ComponentID)
	}
	app.ComponentName = component.Name
	app.CategoryLevel1 = component.CategoryLevel1
	app.CategoryLevel2 = component.CategoryLevel2
	app.CategoryLevel1Name = component.CategoryLevel1Name
	app.CategoryLevel2Name = component.CategoryLevel2Name

	taken, err := s.versions.GetByComponentAndVersion(dbc, app.ComponentID, app.TargetVersion)
	if err != nil {
		return apperr.Infra("version_lookup_failed", err)
	}
	if taken != nil {
		return apperr.Conflict("version_taken", "version %s of component %s already exists", app.TargetVersion, app.ComponentID)
	}
	return nil
}

func (s *applicationService) prepareReplace(dbc dbctx.Context, app *domain.DevelopmentApplication, in CreateApplicationInput) error {
	if in.ExistingVersionID == nil {
		return apperr.ValidationField("application_invalid", "existingVersionId", "a REPLACE application requires the draft version id to replace")
	}
	version, err := s.versions.GetByID(dbc, *in.ExistingVersionID)
	if err != nil {
		return apperr.Infra("version_lookup_failed", err)
	}
	if version == nil {
		return apperr.NotFound("version_not_found", "version %s does not exist", in.ExistingVersionID)
	}
	if version.ComponentID != app.ComponentID {
		return apperr.ValidationField("application_invalid", "existingVersionId",
			"version %s does not belong to component %s", version.ID, app.ComponentID)
	}
	if version.Status != domain.VersionStatusDraft {
		return apperr.State("version_not_draft", "only draft versions can be replaced; version %s is %s", version.ID, version.Status)
	}

	component, err := s.components.GetByComponentID(dbc, app.ComponentID)
	if err != nil {
		return apperr.Infra("component_lookup_failed", err)
	}
	if component == nil {
		return apperr.NotFound("component_not_found", "component %s does not exist", app.ComponentID)
	}
	app.ComponentName = component.Name
	app.CategoryLevel1 = component.CategoryLevel1
	app.CategoryLevel2 = component.CategoryLevel2
	app.CategoryLevel1Name = component.CategoryLevel1Name
	app.CategoryLevel2Name = component.CategoryLevel2Name

	// A replacement inherits the version number of the draft it overwrites.
	app.TargetVersion = version.Version

	reserved, err := s.applications.HasActiveReservation(dbc, app.ComponentID, app.TargetVersion, uuid.Nil)
	if err != nil {
		return apperr.Infra("application_lookup_failed", err)
	}
	if reserved {
		return apperr.Conflict("version_reserved",
			"version %s of component %s is already claimed by another application",
			app.TargetVersion, app.ComponentID)
	}
	return nil
}

func (s *applicationService) Get(ctx context.Context, applicationNo string) (*domain.DevelopmentApplication, error) {
	app, err := s.applications.GetByApplicationNo(dbctx.Context{Ctx: ctx}, applicationNo)
	if err != nil {
		return nil, apperr.Infra("application_lookup_failed", err)
	}
	if app == nil {
		return nil, apperr.NotFound("application_not_found", "application %s does not exist", applicationNo)
	}
	return app, nil
}

func (s *applicationService) GetApplicationByID(ctx context.Context, id uuid.UUID) (*domain.DevelopmentApplication, error) {
	app, err := s.applications.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, apperr.Infra("application_lookup_failed", err)
	}
	return app, nil
}

func (s *applicationService) List(ctx context.Context, filter repos.ApplicationFilter) ([]*domain.DevelopmentApplication, int64, error) {
	apps, total, err := s.applications.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, 0, apperr.Infra("application_lookup_failed", err)
	}
	return apps, total, nil
}

func (s *applicationService) Update(ctx context.Context, applicationNo string, userID uuid.UUID, in UpdateApplicationInput) (*domain.DevelopmentApplication, error) {
	var updated *domain.DevelopmentApplication
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		app, err := s.applications.LockByApplicationNo(txc, applicationNo)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		if app == nil {
			return apperr.NotFound("application_not_found", "application %s does not exist", applicationNo)
		}
		if app.ApplicantID != userID {
			return apperr.Permission("not_applicant", "only the applicant may edit application %s", applicationNo)
		}
		if !domain.StatusIn(app.DevelopmentStatus, domain.EditableStatuses) {
			return apperr.State("application_not_editable",
				"application %s is %s and cannot be edited", applicationNo, app.DevelopmentStatus.Label())
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if app.ApplicationType == domain.ApplicationTypeNew {
			if in.ComponentName != nil {
				if *in.ComponentName == "" {
					return apperr.ValidationField("application_invalid", "componentName", "component name cannot be empty")
				}
				updates["component_name"] = *in.ComponentName
			}
			if in.CategoryLevel1 != nil || in.CategoryLevel2 != nil {
				level1, level2 := app.CategoryLevel1, app.CategoryLevel2
				if in.CategoryLevel1 != nil {
					level1 = *in.CategoryLevel1
				}
				if in.CategoryLevel2 != nil {
					level2 = *in.CategoryLevel2
				}
				pair, err := s.directory.ValidatePair(ctx, level1, level2)
				if err != nil {
					return err
				}
				updates["category_level1"] = pair.Level1
				updates["category_level2"] = pair.Level2
				updates["category_level1_name"] = pair.Level1Name
				updates["category_level2_name"] = pair.Level2Name
			}
		} else if in.ComponentName != nil || in.CategoryLevel1 != nil || in.CategoryLevel2 != nil {
			return apperr.ValidationField("application_invalid", "componentName",
				"name and classification can only change on a NEW application")
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Changelog != nil {
			updates["changelog"] = *in.Changelog
		}

		// Editing a rejected application resubmits it for a new upload round.
		if app.DevelopmentStatus == domain.StatusRejected {
			updates["development_status"] = domain.StatusAwaitingUpload
		}

		if err := s.applications.Update(txc, app.ID, updates); err != nil {
			return apperr.Infra("application_update_failed", err)
		}
		updated, err = s.applications.GetByID(txc, app.ID)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *applicationService) Review(ctx context.Context, applicationNo string, in ReviewInput) (*domain.DevelopmentApplication, error) {
	if in.Action != ReviewActionApprove && in.Action != ReviewActionReject {
		return nil, apperr.ValidationField("review_invalid", "action", "review action must be approve or reject")
	}
	if in.ReviewerID == uuid.Nil {
		return nil, apperr.ValidationField("review_invalid", "reviewerId", "reviewer id is required")
	}

	var reviewed *domain.DevelopmentApplication
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		app, err := s.applications.LockByApplicationNo(txc, applicationNo)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		if app == nil {
			return apperr.NotFound("application_not_found", "application %s does not exist", applicationNo)
		}
		if !domain.StatusIn(app.DevelopmentStatus, domain.ReviewableStatuses) {
			return apperr.State("application_not_reviewable",
				"application %s is %s and cannot be reviewed", applicationNo, app.DevelopmentStatus.Label())
		}
		if app.ApplicantID == in.ReviewerID && !in.AllowSelfReview {
			return apperr.Permission("self_review_forbidden", "application %s cannot be reviewed by its own applicant", applicationNo)
		}

		now := time.Now().UTC()
		record := domain.ReviewRecord{
			Action:     in.Action,
			Comment:    in.Comment,
			ReviewerID: in.ReviewerID,
			ReviewedAt: now,
			SelfReview: app.ApplicantID == in.ReviewerID,
		}
		rawRecord, err := json.Marshal(record)
		if err != nil {
			return apperr.Infra("review_encode_failed", err)
		}

		next := domain.StatusApproved
		if in.Action == ReviewActionReject {
			next = domain.StatusRejected
		}
		updates := map[string]interface{}{
			"development_status": next,
			"reviewer_id":        in.ReviewerID,
			"review_info":        datatypes.JSON(rawRecord),
			"updated_at":         now,
		}
		if err := s.applications.Update(txc, app.ID, updates); err != nil {
			return apperr.Infra("application_update_failed", err)
		}
		reviewed, err = s.applications.GetByID(txc, app.ID)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Application reviewed",
		"application_no", applicationNo,
		"action", in.Action,
		"status", reviewed.DevelopmentStatus,
	)
	return reviewed, nil
}

func (s *applicationService) Cancel(ctx context.Context, applicationNo string, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		app, err := s.applications.LockByApplicationNo(txc, applicationNo)
		if err != nil {
			return apperr.Infra("application_lookup_failed", err)
		}
		if app == nil {
			return apperr.NotFound("application_not_found", "application %s does not exist", applicationNo)
		}
		if app.ApplicantID != userID {
			return apperr.Permission("not_applicant", "only the applicant may cancel application %s", applicationNo)
		}
		if !domain.StatusIn(app.DevelopmentStatus, domain.CancellableStatuses) {
			return apperr.State("application_not_cancellable",
				"application %s is %s and cannot be cancelled", applicationNo, app.DevelopmentStatus.Label())
		}
		// Cancellation is terminal; the version reservation is released because
		// reservation checks skip terminal states.
		updates := map[string]interface{}{
			"development_status": domain.StatusCancelled,
			"updated_at":         time.Now().UTC(),
		}
		if err := s.applications.Update(txc, app.ID, updates); err != nil {
			return apperr.Infra("application_update_failed", err)
		}
		return nil
	})
}

func (s *applicationService) ExportSupplement(ctx context.Context, applicationNo string) (*upload.SupplementDoc, error) {
	app, err := s.Get(ctx, applicationNo)
	if err != nil {
		return nil, err
	}
	if app.DevelopmentStatus != domain.StatusApproved {
		return nil, apperr.State("application_not_approved",
			"application %s is %s; the supplement can only be exported once approved",
			applicationNo, app.DevelopmentStatus.Label())
	}

	meta := upload.SupplementMeta{
		ApplicationID: app.ID.String(),
		ApplicationNo: app.ApplicationNo,
		ExportTime:    time.Now().UTC().Format(time.RFC3339),
	}
	if app.ApplicationType == domain.ApplicationTypeReplace && app.ExistingVersionID != nil {
		meta.IsReplacement = true
		meta.OriginalVersionID = app.ExistingVersionID.String()
	}
	if s.signer != nil {
		signature, err := s.signer.Sign(meta)
		if err != nil {
			return nil, apperr.Infra("supplement_sign_failed", err)
		}
		meta.Signature = signature
	}

	doc := &upload.SupplementDoc{
		ID:       app.ComponentID,
		Name:     app.ComponentName,
		Version:  app.TargetVersion,
		Metadata: meta,
	}
	doc.Classification.Level1 = app.CategoryLevel1
	doc.Classification.Level2 = app.CategoryLevel2
	doc.Classification.DisplayName.Level1 = app.CategoryLevel1Name
	doc.Classification.DisplayName.Level2 = app.CategoryLevel2Name

	s.log.Info("Supplement exported", "application_no", applicationNo, "component_id", app.ComponentID)
	return doc, nil
}
