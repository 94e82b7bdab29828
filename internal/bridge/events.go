package bridge

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType labels the observable events the engine emits.
type EventType string

const (
	EventRequestCreated    EventType = "request.created"
	EventRequestFinalized  EventType = "request.finalized"
	EventVoteRecorded      EventType = "vote.recorded"
	EventFeeUpdated        EventType = "fee.updated"
	EventAssetWhitelisted  EventType = "asset.whitelisted"
	EventPaused            EventType = "paused"
	EventUnpaused          EventType = "unpaused"
	EventRateLimitExceeded EventType = "ratelimit.exceeded"
	EventWindowReset       EventType = "ratelimit.window_reset"
	EventTimelockScheduled EventType = "timelock.scheduled"
	EventTimelockExecuted  EventType = "timelock.executed"
	EventTimelockCanceled  EventType = "timelock.canceled"
	EventRoleGranted       EventType = "role.granted"
	EventRoleRevoked       EventType = "role.revoked"
	EventEmergencyWithdraw EventType = "emergency.withdraw"
)

// Event carries everything needed to reconstruct the affected record without
// a follow-up read. Fields not relevant to a given type stay empty.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	Request  *BridgeRequest   `json:"request,omitempty"`
	Timelock *TimelockRequest `json:"timelock,omitempty"`

	// Finalization detail.
	Operation string           `json:"operation,omitempty"` // "mint" | "unlock"
	Signers   []common.Address `json:"signers,omitempty"`

	// Vote detail.
	Voter   common.Address `json:"voter,omitempty"`
	Approve bool           `json:"approve,omitempty"`

	// Administrative detail.
	Role        Role           `json:"role,omitempty"`
	Account     common.Address `json:"account,omitempty"`
	Asset       common.Address `json:"asset,omitempty"`
	Whitelisted bool           `json:"whitelisted,omitempty"`
	FeeBps      uint64         `json:"fee_bps,omitempty"`

	// Rate-limit detail. Scope is "global" or "user".
	Scope  string         `json:"scope,omitempty"`
	User   common.Address `json:"user,omitempty"`
	Amount *big.Int       `json:"amount,omitempty"`
}

// EventSink receives engine events. Sinks must not call back into the
// engine; they run with the execution lock held.
type EventSink func(Event)
