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

type ApplicationFilter struct {
	ApplicantID uuid.UUID
	Status      domain.ApplicationStatus
	Type        string
	Offset      int
	Limit       int
}

type ApplicationRepo interface {
	Create(dbc dbctx.Context, a *domain.DevelopmentApplication) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DevelopmentApplication, error)
	GetByApplicationNo(dbc dbctx.Context, applicationNo string) (*domain.DevelopmentApplication, error)
	// LockByApplicationNo takes a FOR UPDATE lock on the application row. Requires a transaction.
	LockByApplicationNo(dbc dbctx.Context, applicationNo string) (*domain.DevelopmentApplication, error)
	List(dbc dbctx.Context, filter ApplicationFilter) ([]*domain.DevelopmentApplication, int64, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// HasActiveReservation reports whether a non-terminal application other than
	// excludeID already claims (componentID, version).
	HasActiveReservation(dbc dbctx.Context, componentID, version string, excludeID uuid.UUID) (bool, error)
	// GetApprovedByVersionID finds the approved application linked to a produced version.
	GetApprovedByVersionID(dbc dbctx.Context, versionID uuid.UUID) (*domain.DevelopmentApplication, error)
	// NextSequence increments and returns the per-day application counter.
	// Requires a transaction; the sequence row stays locked until commit.
	NextSequence(dbc dbctx.Context, day string) (int, error)
}

type applicationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplicationRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRepo {
	return &applicationRepo{db: db, log: baseLog.With("repo", "ApplicationRepo")}
}

func (r *applicationRepo) Create(dbc dbctx.Context, a *domain.DevelopmentApplication) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(a).Error
}

func (r *applicationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DevelopmentApplication, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a domain.DevelopmentApplication
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) GetByApplicationNo(dbc dbctx.Context, applicationNo string) (*domain.DevelopmentApplication, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a domain.DevelopmentApplication
	err := transaction.WithContext(dbc.Ctx).
		Where("application_no = ?", applicationNo).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) LockByApplicationNo(dbc dbctx.Context, applicationNo string) (*domain.DevelopmentApplication, error) {
	if dbc.Tx == nil {
		return nil, errors.New("LockByApplicationNo requires a db transaction")
	}
	var a domain.DevelopmentApplication
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("application_no = ?", applicationNo).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) List(dbc dbctx.Context, filter ApplicationFilter) ([]*domain.DevelopmentApplication, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&domain.DevelopmentApplication{})
	if filter.ApplicantID != uuid.Nil {
		q = q.Where("applicant_id = ?", filter.ApplicantID)
	}
	if filter.Status != "" {
		q = q.Where("development_status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("application_type = ?", filter.Type)
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
	var results []*domain.DevelopmentApplication
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *applicationRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.DevelopmentApplication{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *applicationRepo) HasActiveReservation(dbc dbctx.Context, componentID, version string, excludeID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&domain.DevelopmentApplication{}).
		Where("component_id = ? AND target_version = ?", componentID, version).
		Where("development_status NOT IN ?", []domain.ApplicationStatus{domain.StatusCompleted, domain.StatusCancelled})
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *applicationRepo) GetApprovedByVersionID(dbc dbctx.Context, versionID uuid.UUID) (*domain.DevelopmentApplication, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a domain.DevelopmentApplication
	err := transaction.WithContext(dbc.Ctx).
		Where("component_version_id = ? AND development_status = ?", versionID, domain.StatusApproved).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) NextSequence(dbc dbctx.Context, day string) (int, error) {
	if dbc.Tx == nil {
		return 0, errors.New("NextSequence requires a db transaction")
	}
	tx := dbc.Tx.WithContext(dbc.Ctx)

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ApplicationSequence{Day: day, Counter: 0}).Error; err != nil {
		return 0, err
	}

	var seq domain.ApplicationSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("day = ?", day).
		First(&seq).Error; err != nil {
		return 0, err
	}
	seq.Counter++
	if err := tx.Model(&domain.ApplicationSequence{}).
		Where("day = ?", day).
		Update("counter", seq.Counter).Error; err != nil {
		return 0, err
	}
	return seq.Counter, nil
}
