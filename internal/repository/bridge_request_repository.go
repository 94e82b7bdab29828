package repository

import (
	"context"
	"time"

	"bridge-relay/internal/models"

	"gorm.io/gorm"
)

// BridgeRequestRepository is the data access layer for the request ledger
// and its advisory vote trail.
type BridgeRequestRepository interface {
	Create(ctx context.Context, record *models.BridgeRequestRecord) error
	GetByRequestID(ctx context.Context, requestID string) (*models.BridgeRequestRecord, error)
	MarkFinalized(ctx context.Context, requestID, operation, signers string, at time.Time) error
	List(ctx context.Context, page, pageSize int, processed *bool, kind string) ([]*models.BridgeRequestRecord, int64, error)
	ListAll(ctx context.Context) ([]*models.BridgeRequestRecord, error)

	CreateVote(ctx context.Context, vote *models.ValidatorVote) error
	ListVotes(ctx context.Context, requestID string) ([]*models.ValidatorVote, error)
	ListAllVotes(ctx context.Context) ([]*models.ValidatorVote, error)
}

type bridgeRequestRepository struct {
	db *gorm.DB
}

func NewBridgeRequestRepository(db *gorm.DB) BridgeRequestRepository {
	return &bridgeRequestRepository{db: db}
}

func (r *bridgeRequestRepository) Create(ctx context.Context, record *models.BridgeRequestRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *bridgeRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*models.BridgeRequestRecord, error) {
	var record models.BridgeRequestRecord
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *bridgeRequestRepository) MarkFinalized(ctx context.Context, requestID, operation, signers string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.BridgeRequestRecord{}).
		Where("request_id = ? AND processed = false", requestID).
		Updates(map[string]interface{}{
			"processed":    true,
			"operation":    operation,
			"signers":      signers,
			"finalized_at": at,
		}).Error
}

func (r *bridgeRequestRepository) List(ctx context.Context, page, pageSize int, processed *bool, kind string) ([]*models.BridgeRequestRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BridgeRequestRecord{})
	if processed != nil {
		query = query.Where("processed = ?", *processed)
	}
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.BridgeRequestRecord
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *bridgeRequestRepository) ListAll(ctx context.Context) ([]*models.BridgeRequestRecord, error) {
	var records []*models.BridgeRequestRecord
	err := r.db.WithContext(ctx).Order("nonce ASC").Find(&records).Error
	return records, err
}

func (r *bridgeRequestRepository) CreateVote(ctx context.Context, vote *models.ValidatorVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *bridgeRequestRepository) ListVotes(ctx context.Context, requestID string) ([]*models.ValidatorVote, error) {
	var votes []*models.ValidatorVote
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).
		Order("created_at ASC").Find(&votes).Error
	return votes, err
}

func (r *bridgeRequestRepository) ListAllVotes(ctx context.Context) ([]*models.ValidatorVote, error) {
	var votes []*models.ValidatorVote
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&votes).Error
	return votes, err
}
