package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/component-registry/internal/domain"
	"github.com/yungbote/component-registry/internal/platform/dbctx"
	"github.com/yungbote/component-registry/internal/platform/logger"
)

type ComponentVersionRepo interface {
	Create(dbc dbctx.Context, v *domain.ComponentVersion) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ComponentVersion, error)
	// LockByID takes a FOR UPDATE lock on the version row. Requires a transaction.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.ComponentVersion, error)
	GetByComponentAndVersion(dbc dbctx.Context, componentID, version string) (*domain.ComponentVersion, error)
	ListByComponentID(dbc dbctx.Context, componentID string) ([]*domain.ComponentVersion, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// ClearLatest drops is_latest from every version of the component.
	ClearLatest(dbc dbctx.Context, componentID string) error
	CountByComponentID(dbc dbctx.Context, componentID string) (int64, error)
	CountPublishedByComponentID(dbc dbctx.Context, componentID string) (int64, error)
	CountLatestByComponentID(dbc dbctx.Context, componentID string) (int64, error)
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
	SoftDeleteByComponentID(dbc dbctx.Context, componentID string) error
}

type componentVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentVersionRepo(db *gorm.DB, baseLog *logger.Logger) ComponentVersionRepo {
	return &componentVersionRepo{db: db, log: baseLog.With("repo", "ComponentVersionRepo")}
}

func (r *componentVersionRepo) Create(dbc dbctx.Context, v *domain.ComponentVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(v).Error
}

func (r *componentVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ComponentVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v domain.ComponentVersion
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *componentVersionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.ComponentVersion, error) {
	if dbc.Tx == nil {
		return nil, errors.New("LockByID requires a db transaction")
	}
	var v domain.ComponentVersion
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *componentVersionRepo) GetByComponentAndVersion(dbc dbctx.Context, componentID, version string) (*domain.ComponentVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v domain.ComponentVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("component_id = ? AND version = ?", componentID, version).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *componentVersionRepo) ListByComponentID(dbc dbctx.Context, componentID string) ([]*domain.ComponentVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.ComponentVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("component_id = ?", componentID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *componentVersionRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.ComponentVersion{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *componentVersionRepo) ClearLatest(dbc dbctx.Context, componentID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.ComponentVersion{}).
		Where("component_id = ? AND is_latest = ?", componentID, true).
		Update("is_latest", false).Error
}

func (r *componentVersionRepo) CountByComponentID(dbc dbctx.Context, componentID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ComponentVersion{}).
		Where("component_id = ?", componentID).
		Count(&n).Error
	return n, err
}

func (r *componentVersionRepo) CountPublishedByComponentID(dbc dbctx.Context, componentID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ComponentVersion{}).
		Where("component_id = ? AND status = ?", componentID, domain.VersionStatusPublished).
		Count(&n).Error
	return n, err
}

func (r *componentVersionRepo) CountLatestByComponentID(dbc dbctx.Context, componentID string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ComponentVersion{}).
		Where("component_id = ? AND is_latest = ?", componentID, true).
		Count(&n).Error
	return n, err
}

func (r *componentVersionRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&domain.ComponentVersion{}).Error
}

func (r *componentVersionRepo) SoftDeleteByComponentID(dbc dbctx.Context, componentID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("component_id = ?", componentID).
		Delete(&domain.ComponentVersion{}).Error
}
