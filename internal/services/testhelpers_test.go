package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/data/repos/testutil"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
	"github.com/yungbote/component-registry/internal/upload"
)

type serviceDeps struct {
	db           *gorm.DB
	log          *logger.Logger
	components   repos.ComponentRepo
	versions     repos.ComponentVersionRepo
	applications repos.ApplicationRepo
	categories   repos.CategoryRepo
}

// newServiceDeps wires repos against a rolled-back transaction so service
// tests never leak rows. Service-level transactions become savepoints.
func newServiceDeps(t *testing.T) serviceDeps {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	return serviceDeps{
		db:           tx,
		log:          log,
		components:   repos.NewComponentRepo(tx, log),
		versions:     repos.NewComponentVersionRepo(tx, log),
		applications: repos.NewApplicationRepo(tx, log),
		categories:   repos.NewCategoryRepo(tx, log),
	}
}

func seedCategories(t *testing.T, d serviceDeps) {
	t.Helper()
	rows := []*domain.Category{
		{Code: "form", Level: 1, Name: "Forms", Active: true},
		{Code: "form-input", ParentCode: "form", Level: 2, Name: "Inputs", Active: true},
		{Code: "layout", Level: 1, Name: "Layout", Active: true},
		{Code: "layout-grid", ParentCode: "layout", Level: 2, Name: "Grids", Active: true},
		{Code: "legacy", Level: 1, Name: "Legacy", Active: false},
		{Code: "legacy-widget", ParentCode: "legacy", Level: 2, Name: "Widgets", Active: false},
	}
	if err := d.categories.Upsert(dbctx.Context{Ctx: context.Background()}, rows); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
}

func newCatalog(t *testing.T, d serviceDeps, bucket *fakeBucket) CatalogService {
	t.Helper()
	return NewCatalogService(d.db, d.log, d.components, d.versions, bucket)
}

func newApplications(t *testing.T, d serviceDeps) ApplicationService {
	t.Helper()
	classification := NewClassificationService(d.db, d.log, d.categories)
	signer := NewSupplementSigner("test-signing-key")
	return NewApplicationService(d.db, d.log, d.applications, d.components, d.versions, classification, signer)
}

func mustCreateApplication(t *testing.T, svc ApplicationService, in CreateApplicationInput) *domain.DevelopmentApplication {
	t.Helper()
	app, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

func newApplicationInput() CreateApplicationInput {
	return CreateApplicationInput{
		ApplicationType: domain.ApplicationTypeNew,
		ComponentID:     "comp-" + uuid.New().String()[:8],
		ComponentName:   "Button",
		CategoryLevel1:  "form",
		CategoryLevel2:  "form-input",
		Description:     "a clickable button",
		ApplicantID:     uuid.New(),
	}
}

func approve(t *testing.T, svc ApplicationService, applicationNo string) *domain.DevelopmentApplication {
	t.Helper()
	app, err := svc.Review(context.Background(), applicationNo, ReviewInput{
		Action:     ReviewActionApprove,
		ReviewerID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("approve %s: %v", applicationNo, err)
	}
	return app
}

// fakeBucket records object writes in memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	// uploadErr, when set, fails UploadFile for keys it returns an error for.
	uploadErr func(key string) error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) UploadFile(ctx context.Context, key string, contentType string, file io.Reader) error {
	if b.uploadErr != nil {
		if err := b.uploadErr(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBucket) DeletePrefix(ctx context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, prefix)
	return nil
}

func (b *fakeBucket) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://cdn.example/" + key
}

func (b *fakeBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func packageZip(t *testing.T, doc *upload.SupplementDoc) []byte {
	t.Helper()
	rawSupplement, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal supplement: %v", err)
	}
	buildMeta := `{
		"files": {"entry": "index.js", "style": "style.css", "preview": "preview.png"},
		"buildInfo": {"buildTime": "2026-08-30T11:59:00Z", "hash": "hash-1", "cliVersion": "2.4.0"}
	}`
	entries := map[string]string{
		upload.SupplementFileName: string(rawSupplement),
		upload.BuildMetaFileName:  buildMeta,
		"index.js":                "export default {}",
		"style.css":               ".btn{}",
		"preview.png":             "png",
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
