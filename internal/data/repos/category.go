package repos

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type CategoryRepo interface {
	GetByCode(dbc dbctx.Context, code string) (*domain.Category, error)
	List(dbc dbctx.Context) ([]*domain.Category, error)
	// Upsert inserts categories by code, updating name/level/parent/active on conflict.
	Upsert(dbc dbctx.Context, categories []*domain.Category) error
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "CategoryRepo")}
}

func (r *categoryRepo) GetByCode(dbc dbctx.Context, code string) (*domain.Category, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c domain.Category
	err := transaction.WithContext(dbc.Ctx).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) List(dbc dbctx.Context) ([]*domain.Category, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Category
	err := transaction.WithContext(dbc.Ctx).
		Order("level ASC, code ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *categoryRepo) Upsert(dbc dbctx.Context, categories []*domain.Category) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(categories) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"parent_code", "level", "name", "active", "updated_at"}),
		}).
		Create(&categories).Error
}
