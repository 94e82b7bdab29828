package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for every rejected precondition. Handlers and callers
// match them with errors.Is; none of them are recovered inside the engine.
var (
	ErrSystemPaused         = errors.New("system paused")
	ErrSystemNotPaused      = errors.New("system not paused")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidChainID       = errors.New("target chain id equals source chain id")
	ErrAssetNotWhitelisted  = errors.New("asset not whitelisted")
	ErrAmountOutOfBounds    = errors.New("amount out of bounds")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrRequestNotFound      = errors.New("bridge request not found")
	ErrAlreadyProcessed     = errors.New("request already processed")
	ErrInsufficientApprovals = errors.New("insufficient validator approvals")
	ErrInvalidApprovalSignature = errors.New("invalid approval signature")
	ErrAlreadyVoted         = errors.New("validator already voted")

	ErrTimelockNotFound       = errors.New("timelock request not found")
	ErrTimelockNotReady       = errors.New("timelock delay not elapsed")
	ErrTimelockAlreadyExecuted = errors.New("timelock request already executed")
	ErrTimelockAlreadyCanceled = errors.New("timelock request already canceled")
)

// ErrDuplicateApproval is raised when two submitted signatures recover to the
// same validator address. It wraps ErrInvalidApprovalSignature so callers that
// only distinguish valid/invalid batches keep working.
var ErrDuplicateApproval = fmt.Errorf("%w: duplicate signer", ErrInvalidApprovalSignature)
