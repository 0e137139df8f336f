package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos/testutil"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
)

func newVersion(componentID, version string) *domain.ComponentVersion {
	return &domain.ComponentVersion{
		ComponentID: componentID,
		Version:     version,
		BuildHash:   "hash",
		BuildTime:   time.Now().UTC(),
		CLIVersion:  "2.4.0",
		Status:      domain.VersionStatusDraft,
	}
}

func TestLiveVersionUniqueness(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewComponentVersionRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if err := repo.Create(dbc, newVersion("comp-uniq", "1.0.0")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := repo.Create(dbc, newVersion("comp-uniq", "1.0.0"))
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate live version must hit the unique index, got %v", err)
	}
}

func TestTombstonedVersionFreesTheSlot(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewComponentVersionRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	v := newVersion("comp-free", "1.0.0")
	if err := repo.Create(dbc, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SoftDeleteByID(dbc, v.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// The partial index only covers live rows.
	if err := repo.Create(dbc, newVersion("comp-free", "1.0.0")); err != nil {
		t.Fatalf("recreate after tombstone: %v", err)
	}
}

func TestClearLatest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewComponentVersionRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	v1 := newVersion("comp-latest", "1.0.0")
	v1.IsLatest = true
	v2 := newVersion("comp-latest", "2.0.0")
	for _, v := range []*domain.ComponentVersion{v1, v2} {
		if err := repo.Create(dbc, v); err != nil {
			t.Fatalf("create %s: %v", v.Version, err)
		}
	}

	if err := repo.ClearLatest(dbc, "comp-latest"); err != nil {
		t.Fatalf("ClearLatest: %v", err)
	}
	n, err := repo.CountLatestByComponentID(dbc, "comp-latest")
	if err != nil {
		t.Fatalf("count latest: %v", err)
	}
	if n != 0 {
		t.Fatalf("latest rows after clear: %d", n)
	}
}

func TestCounts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewComponentVersionRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	published := newVersion("comp-counts", "1.0.0")
	published.Status = domain.VersionStatusPublished
	draft := newVersion("comp-counts", "2.0.0")
	for _, v := range []*domain.ComponentVersion{published, draft} {
		if err := repo.Create(dbc, v); err != nil {
			t.Fatalf("create %s: %v", v.Version, err)
		}
	}

	total, err := repo.CountByComponentID(dbc, "comp-counts")
	if err != nil || total != 2 {
		t.Fatalf("total: n=%d err=%v", total, err)
	}
	pub, err := repo.CountPublishedByComponentID(dbc, "comp-counts")
	if err != nil || pub != 1 {
		t.Fatalf("published: n=%d err=%v", pub, err)
	}
}
