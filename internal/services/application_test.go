package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
)

var applicationNoRe = regexp.MustCompile(`^APP-\d{8}-\d{4}$`)

func TestCreateNewApplication(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	app := mustCreateApplication(t, svc, newApplicationInput())
	if !applicationNoRe.MatchString(app.ApplicationNo) {
		t.Fatalf("application number format: %q", app.ApplicationNo)
	}
	if !regexp.MustCompile(time.Now().UTC().Format("20060102")).MatchString(app.ApplicationNo) {
		t.Fatalf("application number should embed today's date: %q", app.ApplicationNo)
	}
	if app.DevelopmentStatus != domain.StatusPendingInfo {
		t.Fatalf("initial status: %s", app.DevelopmentStatus)
	}
	if app.TargetVersion != "1.0.0" {
		t.Fatalf("default target version: %q", app.TargetVersion)
	}
	if app.CategoryLevel1Name != "Forms" || app.CategoryLevel2Name != "Inputs" {
		t.Fatalf("display names not resolved: %q/%q", app.CategoryLevel1Name, app.CategoryLevel2Name)
	}
}

func TestApplicationNumbersAreSequentialPerDay(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	first := mustCreateApplication(t, svc, newApplicationInput())
	second := mustCreateApplication(t, svc, newApplicationInput())
	if first.ApplicationNo >= second.ApplicationNo {
		t.Fatalf("sequence did not advance: %q then %q", first.ApplicationNo, second.ApplicationNo)
	}
}

func TestCreateNewRequiresNameAndClassification(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	in := newApplicationInput()
	in.ComponentName = ""
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("missing name kind: %v", apperr.KindOf(err))
	}

	in = newApplicationInput()
	in.CategoryLevel2 = ""
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("missing classification kind: %v", apperr.KindOf(err))
	}

	in = newApplicationInput()
	in.CategoryLevel1 = "legacy"
	in.CategoryLevel2 = "legacy-widget"
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("inactive classification kind: %v", apperr.KindOf(err))
	}
}

func TestCreateVersionApplicationRequiresComponent(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	_, err := svc.Create(context.Background(), CreateApplicationInput{
		ApplicationType: domain.ApplicationTypeVersion,
		ComponentID:     "comp-ghost",
		TargetVersion:   "1.1.0",
		ApplicantID:     uuid.New(),
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
}

func TestVersionReservationBlocksSecondApplication(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	seedComponent(t, d, "comp-table")

	in := CreateApplicationInput{
		ApplicationType: domain.ApplicationTypeVersion,
		ComponentID:     "comp-table",
		TargetVersion:   "2.0.0",
		ApplicantID:     uuid.New(),
	}
	mustCreateApplication(t, svc, in)

	in.ApplicantID = uuid.New()
	if _, err := svc.Create(context.Background(), in); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
}

func TestCancelledApplicationReleasesReservation(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	seedComponent(t, d, "comp-list")

	in := CreateApplicationInput{
		ApplicationType: domain.ApplicationTypeVersion,
		ComponentID:     "comp-list",
		TargetVersion:   "3.0.0",
		ApplicantID:     uuid.New(),
	}
	first := mustCreateApplication(t, svc, in)
	if err := svc.Cancel(context.Background(), first.ApplicationNo, in.ApplicantID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	in.ApplicantID = uuid.New()
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("reservation should be released after cancel: %v", err)
	}
}

func TestUpdateRejectedApplicationResubmits(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	in := newApplicationInput()
	app := mustCreateApplication(t, svc, in)

	rejected, err := svc.Review(context.Background(), app.ApplicationNo, ReviewInput{
		Action:     ReviewActionReject,
		Comment:    "needs a description",
		ReviewerID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.DevelopmentStatus != domain.StatusRejected {
		t.Fatalf("status after reject: %s", rejected.DevelopmentStatus)
	}

	desc := "a much better description"
	updated, err := svc.Update(context.Background(), app.ApplicationNo, in.ApplicantID, UpdateApplicationInput{
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DevelopmentStatus != domain.StatusAwaitingUpload {
		t.Fatalf("editing a rejected application should resubmit it, got %s", updated.DevelopmentStatus)
	}
	if updated.Description != desc {
		t.Fatalf("description not applied: %q", updated.Description)
	}
}

func TestUpdateRequiresApplicant(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	app := mustCreateApplication(t, svc, newApplicationInput())
	desc := "hijack"
	_, err := svc.Update(context.Background(), app.ApplicationNo, uuid.New(), UpdateApplicationInput{Description: &desc})
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
}

func TestSelfReviewGuard(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	in := newApplicationInput()
	app := mustCreateApplication(t, svc, in)

	_, err := svc.Review(context.Background(), app.ApplicationNo, ReviewInput{
		Action:     ReviewActionApprove,
		ReviewerID: in.ApplicantID,
	})
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("self review must be refused by default: %v", apperr.KindOf(err))
	}

	reviewed, err := svc.Review(context.Background(), app.ApplicationNo, ReviewInput{
		Action:          ReviewActionApprove,
		ReviewerID:      in.ApplicantID,
		AllowSelfReview: true,
	})
	if err != nil {
		t.Fatalf("explicit self review: %v", err)
	}
	if reviewed.DevelopmentStatus != domain.StatusApproved {
		t.Fatalf("status after self approve: %s", reviewed.DevelopmentStatus)
	}
}

func TestReviewGateRejectsTerminalStates(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	in := newApplicationInput()
	app := mustCreateApplication(t, svc, in)
	if err := svc.Cancel(context.Background(), app.ApplicationNo, in.ApplicantID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := svc.Review(context.Background(), app.ApplicationNo, ReviewInput{
		Action:     ReviewActionApprove,
		ReviewerID: uuid.New(),
	})
	if !apperr.IsKind(err, apperr.KindState) {
		t.Fatalf("unexpected kind: %v", apperr.KindOf(err))
	}
}

func TestExportSupplementOnlyWhenApproved(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	app := mustCreateApplication(t, svc, newApplicationInput())
	if _, err := svc.ExportSupplement(context.Background(), app.ApplicationNo); !apperr.IsKind(err, apperr.KindState) {
		t.Fatalf("pre-approval export kind: %v", apperr.KindOf(err))
	}

	approve(t, svc, app.ApplicationNo)
	doc, err := svc.ExportSupplement(context.Background(), app.ApplicationNo)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.ID != app.ComponentID || doc.Version != app.TargetVersion {
		t.Fatalf("supplement identity: id=%q version=%q", doc.ID, doc.Version)
	}
	if doc.Metadata.Signature == "" {
		t.Fatal("supplement should be signed when a key is configured")
	}
	if doc.Metadata.ApplicationNo != app.ApplicationNo {
		t.Fatalf("supplement application no: %q", doc.Metadata.ApplicationNo)
	}

	// The exported signature must verify against the same key.
	signer := NewSupplementSigner("test-signing-key")
	if err := signer.VerifySupplement(doc.Metadata); err != nil {
		t.Fatalf("signature round trip: %v", err)
	}
}

func TestCreateReplaceApplicationInheritsDraftVersion(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	c := seedComponent(t, d, "comp-replace")
	draft := seedDraftVersion(t, d, c.ComponentID, "1.2.0")

	app := mustCreateApplication(t, svc, CreateApplicationInput{
		ApplicationType:   domain.ApplicationTypeReplace,
		ComponentID:       c.ComponentID,
		ExistingVersionID: &draft.ID,
		ApplicantID:       uuid.New(),
	})

	if app.TargetVersion != "1.2.0" {
		t.Fatalf("target version not inherited from the draft: %q", app.TargetVersion)
	}
	if app.ComponentName != c.Name || app.CategoryLevel1 != c.CategoryLevel1 {
		t.Fatalf("component identity not resolved: name=%q l1=%q", app.ComponentName, app.CategoryLevel1)
	}
	if app.ExistingVersionID == nil || *app.ExistingVersionID != draft.ID {
		t.Fatal("replaced version id not recorded on the application")
	}
}

func TestCreateReplaceApplicationPreconditions(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)
	ctx := context.Background()

	c := seedComponent(t, d, "comp-replace-pre")
	draft := seedDraftVersion(t, d, c.ComponentID, "1.0.0")
	other := seedComponent(t, d, "comp-replace-other")

	// The target version id is mandatory.
	_, err := svc.Create(ctx, CreateApplicationInput{
		ApplicationType: domain.ApplicationTypeReplace,
		ComponentID:     c.ComponentID,
		ApplicantID:     uuid.New(),
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("missing version id kind: %v", apperr.KindOf(err))
	}

	// The draft must belong to the named component.
	_, err = svc.Create(ctx, CreateApplicationInput{
		ApplicationType:   domain.ApplicationTypeReplace,
		ComponentID:       other.ComponentID,
		ExistingVersionID: &draft.ID,
		ApplicantID:       uuid.New(),
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("foreign draft kind: %v", apperr.KindOf(err))
	}

	// Published versions cannot be replaced.
	if err := d.versions.Update(dbctx.Context{Ctx: ctx}, draft.ID, map[string]interface{}{
		"status": domain.VersionStatusPublished,
	}); err != nil {
		t.Fatalf("publish draft: %v", err)
	}
	_, err = svc.Create(ctx, CreateApplicationInput{
		ApplicationType:   domain.ApplicationTypeReplace,
		ComponentID:       c.ComponentID,
		ExistingVersionID: &draft.ID,
		ApplicantID:       uuid.New(),
	})
	if !apperr.IsKind(err, apperr.KindState) {
		t.Fatalf("published draft kind: %v", apperr.KindOf(err))
	}
}

func TestReplaceSupplementMarksReplacement(t *testing.T) {
	d := newServiceDeps(t)
	seedCategories(t, d)
	svc := newApplications(t, d)

	c := seedComponent(t, d, "comp-replace-sup")
	draft := seedDraftVersion(t, d, c.ComponentID, "2.3.0")

	app := mustCreateApplication(t, svc, CreateApplicationInput{
		ApplicationType:   domain.ApplicationTypeReplace,
		ComponentID:       c.ComponentID,
		ExistingVersionID: &draft.ID,
		ApplicantID:       uuid.New(),
	})
	approve(t, svc, app.ApplicationNo)

	doc, err := svc.ExportSupplement(context.Background(), app.ApplicationNo)
	if err != nil {
		t.Fatalf("export supplement: %v", err)
	}
	if doc.Version != "2.3.0" {
		t.Fatalf("supplement version: %q", doc.Version)
	}
	if !doc.Metadata.IsReplacement {
		t.Fatal("supplement must be marked as a replacement")
	}
	if doc.Metadata.OriginalVersionID != draft.ID.String() {
		t.Fatalf("original version id: %q", doc.Metadata.OriginalVersionID)
	}
}

func seedComponent(t *testing.T, d serviceDeps, componentID string) *domain.Component {
	t.Helper()
	c := &domain.Component{
		ComponentID:        componentID,
		Name:               "Seeded " + componentID,
		CategoryLevel1:     "form",
		CategoryLevel2:     "form-input",
		CategoryLevel1Name: "Forms",
		CategoryLevel2Name: "Inputs",
	}
	if err := d.components.Create(dbctx.Context{Ctx: context.Background()}, c); err != nil {
		t.Fatalf("seed component: %v", err)
	}
	return c
}
