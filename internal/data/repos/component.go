package repos

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type ComponentFilter struct {
	CategoryLevel1 string
	CategoryLevel2 string
	Keyword        string
	Offset         int
	Limit          int
}

type ComponentRepo interface {
	Create(dbc dbctx.Context, c *domain.Component) error
	GetByComponentID(dbc dbctx.Context, componentID string) (*domain.Component, error)
	// LockByComponentID takes a FOR UPDATE lock on the component row. Requires a transaction.
	LockByComponentID(dbc dbctx.Context, componentID string) (*domain.Component, error)
	List(dbc dbctx.Context, filter ComponentFilter) ([]*domain.Component, int64, error)
	Update(dbc dbctx.Context, componentID string, updates map[string]interface{}) error
	SoftDeleteByComponentID(dbc dbctx.Context, componentID string) error
}

type componentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return &componentRepo{db: db, log: baseLog.With("repo", "ComponentRepo")}
}

func (r *componentRepo) Create(dbc dbctx.Context, c *domain.Component) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(c).Error
}

func (r *componentRepo) GetByComponentID(dbc dbctx.Context, componentID string) (*domain.Component, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c domain.Component
	err := transaction.WithContext(dbc.Ctx).
		Where("component_id = ?", componentID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *componentRepo) LockByComponentID(dbc dbctx.Context, componentID string) (*domain.Component, error) {
	if dbc.Tx == nil {
		return nil, errors.New("LockByComponentID requires a db transaction")
	}
	var c domain.Component
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("component_id = ?", componentID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *componentRepo) List(dbc dbctx.Context, filter ComponentFilter) ([]*domain.Component, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&domain.Component{})
	if filter.CategoryLevel1 != "" {
		q = q.Where("category_level1 = ?", filter.CategoryLevel1)
	}
	if filter.CategoryLevel2 != "" {
		q = q.Where("category_level2 = ?", filter.CategoryLevel2)
	}
	if filter.Keyword != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var results []*domain.Component
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *componentRepo) Update(dbc dbctx.Context, componentID string, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Component{}).
		Where("component_id = ?", componentID).
		Updates(updates).Error
}

func (r *componentRepo) SoftDeleteByComponentID(dbc dbctx.Context, componentID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("component_id = ?", componentID).
		Delete(&domain.Component{}).Error
}
