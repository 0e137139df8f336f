package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type fakeAppSource struct {
	app   *domain.DevelopmentApplication
	calls int
}

func (f *fakeAppSource) GetApplicationByID(ctx context.Context, id uuid.UUID) (*domain.DevelopmentApplication, error) {
	f.calls++
	if f.app != nil && f.app.ID == id {
		return f.app, nil
	}
	return nil, nil
}

type fakeDirectory struct {
	err error
}

func (f *fakeDirectory) ValidatePair(ctx context.Context, level1, level2 string) (*domain.CategoryPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CategoryPair{Level1: level1, Level2: level2}, nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) VerifySupplement(meta SupplementMeta) error {
	f.calls++
	return f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func testApplication() *domain.DevelopmentApplication {
	return &domain.DevelopmentApplication{
		ID:                uuid.New(),
		ApplicationNo:     "APP-20260830-0007",
		ApplicationType:   domain.ApplicationTypeNew,
		ComponentID:       "comp-button",
		ComponentName:     "Button",
		TargetVersion:     "1.2.0",
		DevelopmentStatus: domain.StatusApproved,
	}
}

func supplementFor(t *testing.T, app *domain.DevelopmentApplication) string {
	t.Helper()
	doc := SupplementDoc{
		ID:      app.ComponentID,
		Name:    app.ComponentName,
		Version: app.TargetVersion,
		Metadata: SupplementMeta{
			ApplicationID: app.ID.String(),
			ApplicationNo: app.ApplicationNo,
			ExportTime:    "2026-08-30T12:00:00Z",
		},
	}
	doc.Classification.Level1 = "form"
	doc.Classification.Level2 = "form-input"
	doc.Classification.DisplayName.Level1 = "Forms"
	doc.Classification.DisplayName.Level2 = "Inputs"
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal supplement: %v", err)
	}
	return string(raw)
}

func packageEntries(t *testing.T, app *domain.DevelopmentApplication) map[string]string {
	t.Helper()
	return map[string]string{
		SupplementFileName: supplementFor(t, app),
		BuildMetaFileName:  validBuildMeta,
		"index.js":         "export default {}",
		"style.css":        "",
		"preview.png":      "png",
	}
}

func newTestValidator(t *testing.T, apps ApplicationSource, cfg Config) *Validator {
	t.Helper()
	return NewValidator(testLogger(t), apps, &fakeDirectory{}, nil, cfg)
}

func TestValidateHappyPath(t *testing.T) {
	t.Parallel()
	app := testApplication()
	src := &fakeAppSource{app: app}
	v := newTestValidator(t, src, Config{})

	res, err := v.Validate(context.Background(), zipBytes(t, packageEntries(t, app)), app.ApplicationNo)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Application == nil || res.Application.ID != app.ID {
		t.Fatal("result should carry the persisted application")
	}
	if res.BuildMeta.BuildInfo.Hash != "abc123" {
		t.Fatalf("unexpected build hash: %q", res.BuildMeta.BuildInfo.Hash)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestValidateMissingBuildMetaReportedFirst(t *testing.T) {
	t.Parallel()
	app := testApplication()
	v := newTestValidator(t, &fakeAppSource{app: app}, Config{})

	// No build-meta AND no supplement: the build-meta absence must win.
	data := zipBytes(t, map[string]string{"index.js": ""})
	_, err := v.Validate(context.Background(), data, app.ApplicationNo)
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code != "build_meta_not_found" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresScriptAsset(t *testing.T) {
	t.Parallel()
	app := testApplication()
	v := newTestValidator(t, &fakeAppSource{app: app}, Config{})

	entries := packageEntries(t, app)
	delete(entries, "index.js")
	_, err := v.Validate(context.Background(), zipBytes(t, entries), app.ApplicationNo)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code != "no_script_asset" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCallerMismatchBeforeRecordLoad(t *testing.T) {
	t.Parallel()
	app := testApplication()
	src := &fakeAppSource{app: app}
	v := newTestValidator(t, src, Config{})

	_, err := v.Validate(context.Background(), zipBytes(t, packageEntries(t, app)), "APP-20260830-9999")
	if !apperr.IsKind(err, apperr.KindConsistency) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
	if src.calls != 0 {
		t.Fatalf("record must not be read on caller mismatch, got %d reads", src.calls)
	}
}

func TestValidateDetectsTamperedVersion(t *testing.T) {
	t.Parallel()
	app := testApplication()
	src := &fakeAppSource{app: app}
	v := newTestValidator(t, src, Config{})

	// Supplement claims a different version than the application reserved.
	tampered := testApplication()
	tampered.ID = app.ID
	tampered.ApplicationNo = app.ApplicationNo
	tampered.TargetVersion = "9.9.9"
	entries := packageEntries(t, tampered)

	_, err := v.Validate(context.Background(), zipBytes(t, entries), app.ApplicationNo)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindConsistency || ae.Field != "version" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStatusGate(t *testing.T) {
	t.Parallel()
	app := testApplication()
	app.DevelopmentStatus = domain.StatusCompleted
	v := newTestValidator(t, &fakeAppSource{app: app}, Config{})

	_, err := v.Validate(context.Background(), zipBytes(t, packageEntries(t, app)), app.ApplicationNo)
	if !apperr.IsKind(err, apperr.KindState) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
}

func TestValidateDeclaredFileMissing(t *testing.T) {
	t.Parallel()
	app := testApplication()
	v := newTestValidator(t, &fakeAppSource{app: app}, Config{})

	entries := packageEntries(t, app)
	delete(entries, "preview.png")
	_, err := v.Validate(context.Background(), zipBytes(t, entries), app.ApplicationNo)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code != "declared_file_missing" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFileCountWarningDoesNotBlock(t *testing.T) {
	t.Parallel()
	app := testApplication()
	v := newTestValidator(t, &fakeAppSource{app: app}, Config{MaxFileCount: 2})

	res, err := v.Validate(context.Background(), zipBytes(t, packageEntries(t, app)), app.ApplicationNo)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one advisory warning, got %v", res.Warnings)
	}
}

func TestValidateSignatureFailureIsConsistency(t *testing.T) {
	t.Parallel()
	app := testApplication()
	verifier := &fakeVerifier{err: fmt.Errorf("bad signature")}
	v := NewValidator(testLogger(t), &fakeAppSource{app: app}, &fakeDirectory{}, verifier, Config{})

	entries := packageEntries(t, app)
	var doc SupplementDoc
	if err := json.Unmarshal([]byte(entries[SupplementFileName]), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc.Metadata.Signature = "forged"
	raw, _ := json.Marshal(doc)
	entries[SupplementFileName] = string(raw)

	_, err := v.Validate(context.Background(), zipBytes(t, entries), app.ApplicationNo)
	if !apperr.IsKind(err, apperr.KindConsistency) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
	if verifier.calls != 1 {
		t.Fatalf("verifier calls: %d", verifier.calls)
	}
}
