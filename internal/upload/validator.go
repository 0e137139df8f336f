package upload

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

// ApplicationSource loads the persisted application record the supplement
// points at. Implemented by the application registry.
type ApplicationSource interface {
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*domain.DevelopmentApplication, error)
}

// ClassificationDirectory resolves a two-level category pair.
type ClassificationDirectory interface {
	ValidatePair(ctx context.Context, level1, level2 string) (*domain.CategoryPair, error)
}

// SignatureVerifier checks the supplement's export signature. Optional.
type SignatureVerifier interface {
	VerifySupplement(meta SupplementMeta) error
}

type Config struct {
	MaxTotalBytes int64
	MaxFileCount  int
}

// Result is the fully cross-checked outcome of a package validation, ready for
// the publish path.
type Result struct {
	Supplement  *SupplementDoc
	BuildMeta   *BuildMetaDoc
	Archive     *Archive
	Application *domain.DevelopmentApplication
	// Warnings are advisory findings that do not block the upload.
	Warnings []string
}

// Validator runs the ordered package validation pipeline. Any failing step
// aborts with a typed error and no side effects.
type Validator struct {
	log       *logger.Logger
	apps      ApplicationSource
	directory ClassificationDirectory
	verifier  SignatureVerifier
	cfg       Config
}

func NewValidator(
	baseLog *logger.Logger,
	apps ApplicationSource,
	directory ClassificationDirectory,
	verifier SignatureVerifier,
	cfg Config,
) *Validator {
	return &Validator{
		log:       baseLog.With("service", "UploadValidator"),
		apps:      apps,
		directory: directory,
		verifier:  verifier,
		cfg:       cfg,
	}
}

// Validate executes the pipeline against the raw package bytes and the
// caller-supplied application number.
func (v *Validator) Validate(ctx context.Context, data []byte, callerApplicationNo string) (*Result, error) {
	res := &Result{}

	// Step 1: structural checks.
	archive, err := OpenArchive(data, v.cfg.MaxTotalBytes)
	if err != nil {
		return nil, err
	}
	res.Archive = archive

	buildMetaPath, ok := archive.FindDocument(BuildMetaFileName)
	if !ok {
		return nil, apperr.Validation("build_meta_not_found", "package does not contain %s", BuildMetaFileName)
	}
	supplementPath, ok := archive.FindDocument(SupplementFileName)
	if !ok {
		return nil, apperr.Validation("supplement_not_found", "package does not contain %s", SupplementFileName)
	}
	if !archive.HasScriptAsset() {
		return nil, apperr.Validation("no_script_asset", "package does not contain a script asset")
	}
	if v.cfg.MaxFileCount > 0 && archive.FileCount() > v.cfg.MaxFileCount {
		warning := fmt.Sprintf("package contains %d files, advisory limit is %d", archive.FileCount(), v.cfg.MaxFileCount)
		res.Warnings = append(res.Warnings, warning)
		v.log.Warn("Package exceeds advisory file count", "file_count", archive.FileCount(), "limit", v.cfg.MaxFileCount)
	}

	// Step 2: supplement document.
	rawSupplement, err := archive.ReadFile(supplementPath)
	if err != nil {
		return nil, err
	}
	supplement, err := ParseSupplement(rawSupplement)
	if err != nil {
		return nil, err
	}
	res.Supplement = supplement

	// Step 3: the caller's application number must match the embedded one
	// before any record is read, so an approved package cannot be replayed
	// against a different application.
	if callerApplicationNo != supplement.Metadata.ApplicationNo {
		return nil, apperr.Consistency("application_no_mismatch", "applicationNo",
			"caller application number %q does not match the supplement's %q",
			callerApplicationNo, supplement.Metadata.ApplicationNo)
	}

	if v.verifier != nil && supplement.Metadata.Signature != "" {
		if err := v.verifier.VerifySupplement(supplement.Metadata); err != nil {
			return nil, apperr.Consistency("supplement_signature_invalid", "_metadata.signature",
				"supplement signature verification failed: %v", err)
		}
	}

	// Step 4: persisted-record cross-check.
	appID, err := uuid.Parse(supplement.Metadata.ApplicationID)
	if err != nil {
		return nil, apperr.ValidationField("supplement_invalid", "_metadata.applicationId",
			"supplement application id %q is not a uuid", supplement.Metadata.ApplicationID)
	}
	application, err := v.apps.GetApplicationByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if application == nil {
		return nil, apperr.NotFound("application_not_found", "application %s referenced by the supplement does not exist", appID)
	}
	if application.ApplicationNo != supplement.Metadata.ApplicationNo {
		return nil, apperr.Consistency("supplement_tampered", "applicationNo",
			"supplement application number %q does not match the application record", supplement.Metadata.ApplicationNo)
	}
	if application.ComponentID != supplement.ID {
		return nil, apperr.Consistency("supplement_tampered", "componentId",
			"supplement component id %q does not match the application record", supplement.ID)
	}
	if application.TargetVersion != supplement.Version {
		return nil, apperr.Consistency("supplement_tampered", "version",
			"supplement version %q does not match the application's target version", supplement.Version)
	}
	res.Application = application

	// Step 5: status gate.
	if !domain.StatusIn(application.DevelopmentStatus, domain.UploadableStatuses) {
		return nil, apperr.State("application_not_uploadable",
			"application %s is %s and cannot accept an upload",
			application.ApplicationNo, application.DevelopmentStatus.Label())
	}

	// Step 6: build-metadata document.
	rawBuildMeta, err := archive.ReadFile(buildMetaPath)
	if err != nil {
		return nil, err
	}
	buildMeta, err := ParseBuildMeta(rawBuildMeta)
	if err != nil {
		return nil, err
	}
	res.BuildMeta = buildMeta

	// Step 7: every declared file must be physically present.
	for _, declared := range buildMeta.DeclaredFiles() {
		if _, ok := archive.Resolve(declared); !ok {
			return nil, apperr.ValidationField("declared_file_missing", declared,
				"file %q declared in build metadata is not present in the package", declared)
		}
	}

	// Step 8: classification pair must resolve in the directory.
	if _, err := v.directory.ValidatePair(ctx, supplement.Classification.Level1, supplement.Classification.Level2); err != nil {
		return nil, err
	}

	return res, nil
}
