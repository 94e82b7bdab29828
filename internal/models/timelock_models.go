package models

import (
	"time"
)

// TimelockStatus is the persisted state of a scheduled privileged call.
type TimelockStatus string

const (
	TimelockStatusScheduled TimelockStatus = "scheduled"
	TimelockStatusExecuted  TimelockStatus = "executed"
	TimelockStatusCanceled  TimelockStatus = "canceled"
)

// TimelockRecord mirrors one timelocked privileged operation.
type TimelockRecord struct {
	ID         uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	TimelockID string `json:"timelock_id" gorm:"size:36;uniqueIndex;not null"` // UUID

	Target       string `json:"target" gorm:"size:64;not null"`
	Value        string `json:"value" gorm:"not null"`
	Payload      string `json:"payload" gorm:"type:text"` // JSON
	DelaySeconds int64  `json:"delay_seconds" gorm:"not null"`

	Status     TimelockStatus `json:"status" gorm:"size:16;not null;default:'scheduled';index"`
	ExecutedAt *time.Time     `json:"executed_at"`
	CanceledAt *time.Time     `json:"canceled_at"`

	ScheduledBy string    `json:"scheduled_by" gorm:"size:42"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (TimelockRecord) TableName() string {
	return "timelock_requests"
}
