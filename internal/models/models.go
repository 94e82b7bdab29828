package models

import (
	"time"
)

// BridgeRequestRecord is the persisted mirror of one bridge request. The
// ledger is append-only: rows are created on lock/burn and only the
// finalization columns are ever updated.
type BridgeRequestRecord struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID string `json:"request_id" gorm:"size:66;uniqueIndex;not null"` // keccak id, 0x-hex
	Kind      string `json:"kind" gorm:"size:8;not null;index"`              // lock | burn

	Asset     string `json:"asset" gorm:"size:42;not null;index"`
	Sender    string `json:"sender" gorm:"size:42;not null;index"`
	Recipient string `json:"recipient" gorm:"size:42;not null"`

	// Amounts in the asset's smallest unit, as decimal strings.
	Amount      string `json:"amount" gorm:"not null"` // net, post-fee
	Fee         string `json:"fee" gorm:"not null"`
	GrossAmount string `json:"gross_amount" gorm:"not null"`

	SourceChainID uint64 `json:"source_chain_id" gorm:"not null;index"`
	TargetChainID uint64 `json:"target_chain_id" gorm:"not null;index"`
	Nonce         uint64 `json:"nonce" gorm:"not null"`

	Processed   bool       `json:"processed" gorm:"not null;default:false;index"`
	Operation   string     `json:"operation" gorm:"size:8"` // mint | unlock, set on finalization
	Signers     string     `json:"signers" gorm:"type:text"` // JSON array of approving validators
	FinalizedAt *time.Time `json:"finalized_at"`

	MintableAt time.Time `json:"mintable_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (BridgeRequestRecord) TableName() string {
	return "bridge_requests"
}

// ValidatorVote is the advisory vote trail. One row per validator per
// request, enforced by the composite unique index.
type ValidatorVote struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID string    `json:"request_id" gorm:"size:66;not null;uniqueIndex:idx_request_voter"`
	Voter     string    `json:"voter" gorm:"size:42;not null;uniqueIndex:idx_request_voter"`
	Approve   bool      `json:"approve" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ValidatorVote) TableName() string {
	return "validator_votes"
}
