package models

import (
	"time"
)

// RoleGrant is one persisted role membership. Revocation deletes the row.
type RoleGrant struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Role      string    `json:"role" gorm:"size:32;not null;uniqueIndex:idx_role_account"`
	Account   string    `json:"account" gorm:"size:42;not null;uniqueIndex:idx_role_account"`
	GrantedBy string    `json:"granted_by" gorm:"size:42"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}

// AssetWhitelistEntry marks an asset as bridgeable. Delisting deletes the
// row.
type AssetWhitelistEntry struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Asset     string    `json:"asset" gorm:"size:42;uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (AssetWhitelistEntry) TableName() string {
	return "asset_whitelist"
}

// GlobalConfig is a key/value row for small persisted settings (paused flag,
// fee bps, timelock delay).
type GlobalConfig struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ConfigKey   string    `json:"config_key" gorm:"size:64;uniqueIndex;not null"`
	ConfigValue string    `json:"config_value" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	UpdatedBy   string    `json:"updated_by" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (GlobalConfig) TableName() string {
	return "global_configs"
}

// RelayEvent is the append-only audit trail of every engine event, stored as
// the JSON the event bus publishes.
type RelayEvent struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Type      string    `json:"type" gorm:"size:48;not null;index"`
	Payload   string    `json:"payload" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (RelayEvent) TableName() string {
	return "relay_events"
}
