package repository

import (
	"context"
	"time"

	"bridge-relay/internal/models"

	"gorm.io/gorm"
)

// TimelockRepository is the data access layer for scheduled privileged
// operations.
type TimelockRepository interface {
	Create(ctx context.Context, record *models.TimelockRecord) error
	GetByTimelockID(ctx context.Context, timelockID string) (*models.TimelockRecord, error)
	MarkExecuted(ctx context.Context, timelockID string, at time.Time) error
	MarkCanceled(ctx context.Context, timelockID string, at time.Time) error
	List(ctx context.Context, page, pageSize int, status string) ([]*models.TimelockRecord, int64, error)
	ListAll(ctx context.Context) ([]*models.TimelockRecord, error)
}

type timelockRepository struct {
	db *gorm.DB
}

func NewTimelockRepository(db *gorm.DB) TimelockRepository {
	return &timelockRepository{db: db}
}

func (r *timelockRepository) Create(ctx context.Context, record *models.TimelockRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *timelockRepository) GetByTimelockID(ctx context.Context, timelockID string) (*models.TimelockRecord, error) {
	var record models.TimelockRecord
	if err := r.db.WithContext(ctx).Where("timelock_id = ?", timelockID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *timelockRepository) MarkExecuted(ctx context.Context, timelockID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TimelockRecord{}).
		Where("timelock_id = ? AND status = ?", timelockID, models.TimelockStatusScheduled).
		Updates(map[string]interface{}{
			"status":      models.TimelockStatusExecuted,
			"executed_at": at,
		}).Error
}

func (r *timelockRepository) MarkCanceled(ctx context.Context, timelockID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TimelockRecord{}).
		Where("timelock_id = ? AND status = ?", timelockID, models.TimelockStatusScheduled).
		Updates(map[string]interface{}{
			"status":      models.TimelockStatusCanceled,
			"canceled_at": at,
		}).Error
}

func (r *timelockRepository) List(ctx context.Context, page, pageSize int, status string) ([]*models.TimelockRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TimelockRecord{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.TimelockRecord
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *timelockRepository) ListAll(ctx context.Context) ([]*models.TimelockRecord, error) {
	var records []*models.TimelockRecord
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&records).Error
	return records, err
}
