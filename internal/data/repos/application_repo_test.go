package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/component-registry/internal/data/repos/testutil"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
)

func TestNextSequenceIncrementsWithinDay(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewApplicationRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	first, err := repo.NextSequence(dbc, "20260830")
	if err != nil {
		t.Fatalf("first NextSequence: %v", err)
	}
	second, err := repo.NextSequence(dbc, "20260830")
	if err != nil {
		t.Fatalf("second NextSequence: %v", err)
	}
	if second != first+1 {
		t.Fatalf("sequence: first=%d second=%d", first, second)
	}

	otherDay, err := repo.NextSequence(dbc, "20260831")
	if err != nil {
		t.Fatalf("other day NextSequence: %v", err)
	}
	if otherDay != 1 {
		t.Fatalf("each day starts at 1, got %d", otherDay)
	}
}

func TestNextSequenceRequiresTransaction(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewApplicationRepo(tx, testutil.Logger(t))

	if _, err := repo.NextSequence(dbctx.Context{Ctx: context.Background()}, "20260830"); err == nil {
		t.Fatal("NextSequence without a transaction must fail")
	}
}

func TestHasActiveReservation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewApplicationRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	app := &domain.DevelopmentApplication{
		ApplicationNo:     "APP-20260830-0042",
		ApplicationType:   domain.ApplicationTypeVersion,
		ComponentID:       "comp-res",
		ComponentName:     "Reserved",
		TargetVersion:     "1.5.0",
		DevelopmentStatus: domain.StatusPendingInfo,
		ApplicantID:       uuid.New(),
	}
	if err := repo.Create(dbc, app); err != nil {
		t.Fatalf("create: %v", err)
	}

	reserved, err := repo.HasActiveReservation(dbc, "comp-res", "1.5.0", uuid.Nil)
	if err != nil {
		t.Fatalf("HasActiveReservation: %v", err)
	}
	if !reserved {
		t.Fatal("pending application should reserve the version")
	}

	// The holder itself is excluded.
	reserved, err = repo.HasActiveReservation(dbc, "comp-res", "1.5.0", app.ID)
	if err != nil {
		t.Fatalf("HasActiveReservation exclude: %v", err)
	}
	if reserved {
		t.Fatal("the reserving application must not block itself")
	}

	// Terminal states release the reservation.
	if err := repo.Update(dbc, app.ID, map[string]interface{}{
		"development_status": domain.StatusCancelled,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	reserved, err = repo.HasActiveReservation(dbc, "comp-res", "1.5.0", uuid.Nil)
	if err != nil {
		t.Fatalf("HasActiveReservation terminal: %v", err)
	}
	if reserved {
		t.Fatal("cancelled application must not hold the reservation")
	}
}

func TestGetApprovedByVersionID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewApplicationRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	versionID := uuid.New()
	app := &domain.DevelopmentApplication{
		ApplicationNo:      "APP-20260830-0043",
		ApplicationType:    domain.ApplicationTypeNew,
		ComponentID:        "comp-linked",
		ComponentName:      "Linked",
		TargetVersion:      "1.0.0",
		DevelopmentStatus:  domain.StatusApproved,
		ApplicantID:        uuid.New(),
		ComponentVersionID: &versionID,
	}
	if err := repo.Create(dbc, app); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := repo.GetApprovedByVersionID(dbc, versionID)
	if err != nil {
		t.Fatalf("GetApprovedByVersionID: %v", err)
	}
	if found == nil || found.ID != app.ID {
		t.Fatal("approved linked application should be found")
	}

	if found, err = repo.GetApprovedByVersionID(dbc, uuid.New()); err != nil || found != nil {
		t.Fatalf("unlinked version: found=%v err=%v", found, err)
	}
}
