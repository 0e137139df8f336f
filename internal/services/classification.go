package services

import (
	"context"
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/yungbote/component-registry/internal/data/repos"
	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/apperr"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

const (
	classificationCacheTTL     = 10 * time.Minute
	classificationCacheCleanup = 30 * time.Minute
)

// ClassificationService is the read-only two-level category directory. The
// directory itself is administered out-of-band; this service only validates
// and lists.
type ClassificationService interface {
	// ValidatePair checks that both codes exist, are active, and that level2's
	// parent is level1, returning the resolved display names.
	ValidatePair(ctx context.Context, level1, level2 string) (*domain.CategoryPair, error)
	List(ctx context.Context) ([]*domain.Category, error)
	// LoadSeed upserts the taxonomy from a YAML seed file. Idempotent.
	LoadSeed(ctx context.Context, path string) error
}

type classificationService struct {
	db         *gorm.DB
	log        *logger.Logger
	categories repos.CategoryRepo
	cache      *gocache.Cache
}

func NewClassificationService(db *gorm.DB, baseLog *logger.Logger, categories repos.CategoryRepo) ClassificationService {
	return &classificationService{
		db:         db,
		log:        baseLog.With("service", "ClassificationService"),
		categories: categories,
		cache:      gocache.New(classificationCacheTTL, classificationCacheCleanup),
	}
}

func (s *classificationService) ValidatePair(ctx context.Context, level1, level2 string) (*domain.CategoryPair, error) {
	if level1 == "" || level2 == "" {
		return nil, apperr.ValidationField("classification_missing", "classification", "both classification levels are required")
	}

	cacheKey := level1 + "/" + level2
	if cached, ok := s.cache.Get(cacheKey); ok {
		if pair, ok := cached.(*domain.CategoryPair); ok {
			return pair, nil
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	parent, err := s.categories.GetByCode(dbc, level1)
	if err != nil {
		return nil, apperr.Infra("category_lookup_failed", err)
	}
	if parent == nil {
		return nil, apperr.NotFound("category_not_found", "classification %q does not exist", level1)
	}
	child, err := s.categories.GetByCode(dbc, level2)
	if err != nil {
		return nil, apperr.Infra("category_lookup_failed", err)
	}
	if child == nil {
		return nil, apperr.NotFound("category_not_found", "classification %q does not exist", level2)
	}

	if parent.Level != 1 || child.Level != 2 {
		return nil, apperr.ValidationField("category_invalid", "classification",
			"%q/%q is not a level-1/level-2 pair", level1, level2)
	}
	if !parent.Active || !child.Active {
		return nil, apperr.ValidationField("category_inactive", "classification",
			"classification %q/%q is not active", level1, level2)
	}
	if child.ParentCode != parent.Code {
		return nil, apperr.ValidationField("category_mismatch", "classification",
			"classification %q is not a child of %q", level2, level1)
	}

	pair := &domain.CategoryPair{
		Level1:     parent.Code,
		Level2:     child.Code,
		Level1Name: parent.Name,
		Level2Name: child.Name,
	}
	s.cache.Set(cacheKey, pair, gocache.DefaultExpiration)
	return pair, nil
}

func (s *classificationService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, apperr.Infra("category_lookup_failed", err)
	}
	return categories, nil
}

type seedCategory struct {
	Code     string         `yaml:"code"`
	Name     string         `yaml:"name"`
	Active   *bool          `yaml:"active"`
	Children []seedCategory `yaml:"children"`
}

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

func (s *classificationService) LoadSeed(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read classification seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse classification seed: %w", err)
	}

	var rows []*domain.Category
	for _, level1 := range seed.Categories {
		rows = append(rows, &domain.Category{
			Code:   level1.Code,
			Level:  1,
			Name:   level1.Name,
			Active: level1.Active == nil || *level1.Active,
		})
		for _, level2 := range level1.Children {
			rows = append(rows, &domain.Category{
				Code:       level2.Code,
				ParentCode: level1.Code,
				Level:      2,
				Name:       level2.Name,
				Active:     level2.Active == nil || *level2.Active,
			})
		}
	}
	if err := s.categories.Upsert(dbctx.Context{Ctx: ctx}, rows); err != nil {
		return fmt.Errorf("upsert classification seed: %w", err)
	}
	s.cache.Flush()
	s.log.Info("Classification seed loaded", "path", path, "categories", len(rows))
	return nil
}
