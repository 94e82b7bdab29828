package repository

import (
	"context"
	"time"

	"bridge-relay/internal/models"

	"gorm.io/gorm"
)

// StateRepository persists the small relay state: role grants, the asset
// whitelist, key/value settings and the event audit trail.
type StateRepository interface {
	GrantRole(ctx context.Context, role, account, grantedBy string) error
	RevokeRole(ctx context.Context, role, account string) error
	ListRoleGrants(ctx context.Context) ([]*models.RoleGrant, error)

	AddWhitelist(ctx context.Context, asset string) error
	RemoveWhitelist(ctx context.Context, asset string) error
	ListWhitelist(ctx context.Context) ([]*models.AssetWhitelistEntry, error)

	SetGlobalConfig(ctx context.Context, key, value, updatedBy string) error
	GetGlobalConfig(ctx context.Context, key string) (string, error)

	AppendEvent(ctx context.Context, eventType, payload string) error
	ListEvents(ctx context.Context, page, pageSize int, eventType string) ([]*models.RelayEvent, int64, error)
}

type stateRepository struct {
	db *gorm.DB
}

func NewStateRepository(db *gorm.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) GrantRole(ctx context.Context, role, account, grantedBy string) error {
	grant := models.RoleGrant{Role: role, Account: account, GrantedBy: grantedBy, CreatedAt: time.Now()}
	// Re-granting an existing role is a no-op, matching the engine.
	return r.db.WithContext(ctx).
		Where("role = ? AND account = ?", role, account).
		FirstOrCreate(&grant).Error
}

func (r *stateRepository) RevokeRole(ctx context.Context, role, account string) error {
	return r.db.WithContext(ctx).
		Where("role = ? AND account = ?", role, account).
		Delete(&models.RoleGrant{}).Error
}

func (r *stateRepository) ListRoleGrants(ctx context.Context) ([]*models.RoleGrant, error) {
	var grants []*models.RoleGrant
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&grants).Error
	return grants, err
}

func (r *stateRepository) AddWhitelist(ctx context.Context, asset string) error {
	entry := models.AssetWhitelistEntry{Asset: asset, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Where("asset = ?", asset).FirstOrCreate(&entry).Error
}

func (r *stateRepository) RemoveWhitelist(ctx context.Context, asset string) error {
	return r.db.WithContext(ctx).Where("asset = ?", asset).Delete(&models.AssetWhitelistEntry{}).Error
}

func (r *stateRepository) ListWhitelist(ctx context.Context) ([]*models.AssetWhitelistEntry, error) {
	var entries []*models.AssetWhitelistEntry
	err := r.db.WithContext(ctx).Find(&entries).Error
	return entries, err
}

func (r *stateRepository) SetGlobalConfig(ctx context.Context, key, value, updatedBy string) error {
	var existing models.GlobalConfig
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&existing).Error
	if err != nil {
		return r.db.WithContext(ctx).Create(&models.GlobalConfig{
			ConfigKey:   key,
			ConfigValue: value,
			UpdatedBy:   updatedBy,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}).Error
	}
	return r.db.WithContext(ctx).
		Model(&models.GlobalConfig{}).
		Where("config_key = ?", key).
		Updates(map[string]interface{}{
			"config_value": value,
			"updated_by":   updatedBy,
			"updated_at":   time.Now(),
		}).Error
}

func (r *stateRepository) GetGlobalConfig(ctx context.Context, key string) (string, error) {
	var cfg models.GlobalConfig
	if err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.ConfigValue, nil
}

func (r *stateRepository) AppendEvent(ctx context.Context, eventType, payload string) error {
	return r.db.WithContext(ctx).Create(&models.RelayEvent{
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}).Error
}

func (r *stateRepository) ListEvents(ctx context.Context, page, pageSize int, eventType string) ([]*models.RelayEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RelayEvent{})
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*models.RelayEvent
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
