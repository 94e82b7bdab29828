// Package bridge implements the request lifecycle and validator-consensus
// engine of the relay: lock/burn intake, fee accounting, signature-quorum
// finalization, replay protection, rolling rate limits and timelocked
// privileged execution.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RequestKind distinguishes the escrow leg from the burn leg.
type RequestKind string

const (
	RequestKindLock RequestKind = "lock"
	RequestKindBurn RequestKind = "burn"
)

// BridgeRequest is one cross-chain transfer attempt. Amount is the net
// amount after the fee; GrossAmount is what custody actually moved.
type BridgeRequest struct {
	ID            common.Hash    `json:"id"`
	Kind          RequestKind    `json:"kind"`
	Asset         common.Address `json:"asset"`
	Sender        common.Address `json:"sender"`
	Recipient     common.Address `json:"recipient"`
	Amount        *big.Int       `json:"amount"`
	Fee           *big.Int       `json:"fee"`
	GrossAmount   *big.Int       `json:"gross_amount"`
	SourceChainID uint64         `json:"source_chain_id"`
	TargetChainID uint64         `json:"target_chain_id"`
	Nonce         uint64         `json:"nonce"`
	Processed     bool           `json:"processed"`
	CreatedAt     time.Time      `json:"created_at"`
	MintableAt    time.Time      `json:"mintable_at"`

	// Advisory vote trail. Never consulted by finalize; the signature
	// quorum is authoritative.
	Approvals int                     `json:"approvals"`
	Voted     map[common.Address]bool `json:"voted,omitempty"`
}

func (r *BridgeRequest) clone() *BridgeRequest {
	c := *r
	c.Amount = new(big.Int).Set(r.Amount)
	c.Fee = new(big.Int).Set(r.Fee)
	c.GrossAmount = new(big.Int).Set(r.GrossAmount)
	c.Voted = make(map[common.Address]bool, len(r.Voted))
	for a, v := range r.Voted {
		c.Voted[a] = v
	}
	return &c
}

// Config carries every tunable of the engine. Caps and bounds are amounts in
// the asset's smallest unit.
type Config struct {
	SourceChainID uint64
	EscrowAccount common.Address
	ProtocolTag   string
	Domain        []byte

	FeeBps    uint64
	MinAmount *big.Int
	MaxAmount *big.Int

	GlobalCap    *big.Int
	UserCap      *big.Int
	WindowPeriod time.Duration

	// MintDelay is the mandatory wait between request creation and
	// finalization. Zero disables the check.
	MintDelay     time.Duration
	TimelockDelay time.Duration

	Consensus ConsensusConfig

	Admin common.Address

	// Now overrides the clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

func (c *Config) validate() error {
	if c.FeeBps > 10000 {
		return fmt.Errorf("bridge: fee %d bps exceeds 100%%", c.FeeBps)
	}
	if c.MinAmount == nil || c.MaxAmount == nil || c.MinAmount.Cmp(c.MaxAmount) > 0 {
		return fmt.Errorf("bridge: invalid amount bounds")
	}
	if c.GlobalCap == nil || c.UserCap == nil {
		return fmt.Errorf("bridge: missing rate-limit caps")
	}
	if c.WindowPeriod <= 0 {
		return fmt.Errorf("bridge: window period must be positive")
	}
	return c.Consensus.validate()
}

// Engine orchestrates the lifecycle. One mutex serializes every public
// operation: each call observes and mutates state as an atomic transaction,
// and a custody backend that tried to call back into the engine would block
// instead of reentering half-written state. Failed operations roll their own
// writes back before returning, so no partial effect survives an error.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	now       func() time.Time
	policy    *AccessPolicy
	custody   CustodyAdapter
	limiter   *RateLimiter
	processed *ProcessedSet
	verifier  *QuorumVerifier
	timelock  *Timelock

	requests map[common.Hash]*BridgeRequest
	order    []common.Hash
	whitelist map[common.Address]bool
	nonce    uint64
	paused   bool
	feeBps   uint64

	sink EventSink
}

// New builds an engine. The access policy starts with cfg.Admin as root
// admin; sink may be nil.
func New(cfg Config, custody CustodyAdapter, sink EventSink) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	verifier, err := NewQuorumVerifier(cfg.Consensus)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		now:       now,
		policy:    NewAccessPolicy(cfg.Admin, AdministeredRoles()),
		custody:   custody,
		limiter:   NewRateLimiter(cfg.WindowPeriod, cfg.GlobalCap, cfg.UserCap, now()),
		processed: NewProcessedSet(),
		verifier:  verifier,
		timelock:  NewTimelock(cfg.TimelockDelay),
		requests:  make(map[common.Hash]*BridgeRequest),
		whitelist: make(map[common.Address]bool),
		feeBps:    cfg.FeeBps,
		sink:      sink,
	}, nil
}

// Policy exposes the access policy for read-side callers (consensus checks,
// capability listing). Mutation goes through GrantRole/RevokeRole.
func (e *Engine) Policy() *AccessPolicy {
	return e.policy
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		ev.At = e.now()
		e.sink(ev)
	}
}

// Lock escrows amount of asset for a transfer to targetChain and records the
// request. No consensus is needed to create a request; the value is already
// escrowed on this side.
func (e *Engine) Lock(ctx context.Context, caller, asset, recipient common.Address, amount *big.Int, targetChain uint64) (*BridgeRequest, error) {
	return e.createRequest(ctx, RequestKindLock, caller, asset, recipient, amount, targetChain)
}

// Burn destroys amount of asset for the return leg and records the request.
func (e *Engine) Burn(ctx context.Context, caller, asset, recipient common.Address, amount *big.Int, targetChain uint64) (*BridgeRequest, error) {
	return e.createRequest(ctx, RequestKindBurn, caller, asset, recipient, amount, targetChain)
}

func (e *Engine) createRequest(ctx context.Context, kind RequestKind, caller, asset, recipient common.Address, amount *big.Int, targetChain uint64) (*BridgeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrSystemPaused
	}
	if !e.whitelist[asset] {
		return nil, ErrAssetNotWhitelisted
	}
	if amount == nil || amount.Cmp(e.cfg.MinAmount) < 0 || amount.Cmp(e.cfg.MaxAmount) > 0 {
		return nil, ErrAmountOutOfBounds
	}
	if targetChain == e.cfg.SourceChainID {
		return nil, ErrInvalidChainID
	}

	now := e.now()
	res, err := e.limiter.CheckAndReserve(caller, amount, now)
	e.emitWindowResets(res, caller)
	if err != nil {
		e.emit(Event{Type: EventRateLimitExceeded, User: caller, Amount: new(big.Int).Set(amount)})
		return nil, err
	}

	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(e.feeBps))
	fee.Div(fee, big.NewInt(10000))
	net := new(big.Int).Sub(amount, fee)

	nonce := e.nonce
	id := DeriveRequestID(asset, caller, recipient, amount, targetChain, e.cfg.SourceChainID, nonce)
	req := &BridgeRequest{
		ID:            id,
		Kind:          kind,
		Asset:         asset,
		Sender:        caller,
		Recipient:     recipient,
		Amount:        net,
		Fee:           fee,
		GrossAmount:   new(big.Int).Set(amount),
		SourceChainID: e.cfg.SourceChainID,
		TargetChainID: targetChain,
		Nonce:         nonce,
		CreatedAt:     now,
		MintableAt:    now.Add(e.cfg.MintDelay),
		Voted:         make(map[common.Address]bool),
	}

	// Own state first, custody second. The record, nonce and counters are
	// written before the external call and unwound if it fails.
	e.nonce++
	e.requests[id] = req
	e.order = append(e.order, id)

	escrow := e.cfg.EscrowAccount
	if kind == RequestKindBurn {
		escrow = BurnAddress
	}
	if err := e.custody.TransferFrom(ctx, asset, caller, escrow, amount); err != nil {
		delete(e.requests, id)
		e.order = e.order[:len(e.order)-1]
		e.nonce = nonce
		e.limiter.Release(caller, amount)
		return nil, err
	}

	out := req.clone()
	e.emit(Event{Type: EventRequestCreated, Request: out})
	return out, nil
}

// FinalizeResult reports a successful mint/unlock: the stored request after
// processing plus the distinct validators whose signatures formed the
// quorum.
type FinalizeResult struct {
	Request   *BridgeRequest
	Operation string
	Signers   []common.Address
}

// Mint finalizes a request on the target side: verifies the signature
// quorum, marks the id processed and credits the recipient with the stored
// net amount. Caller must hold the Relayer role.
func (e *Engine) Mint(ctx context.Context, caller common.Address, id common.Hash, approvals [][]byte) (*FinalizeResult, error) {
	return e.finalize(ctx, "mint", caller, id, approvals)
}

// Unlock is the escrow-return twin of Mint. The emitted event and custody
// credit always come from the stored request record, never from
// caller-supplied values.
func (e *Engine) Unlock(ctx context.Context, caller common.Address, id common.Hash, approvals [][]byte) (*FinalizeResult, error) {
	return e.finalize(ctx, "unlock", caller, id, approvals)
}

func (e *Engine) finalize(ctx context.Context, op string, caller common.Address, id common.Hash, approvals [][]byte) (*FinalizeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrSystemPaused
	}
	if !e.policy.HasRole(RoleRelayer, caller) {
		return nil, ErrUnauthorized
	}
	req, ok := e.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if e.processed.IsProcessed(id) || req.Processed {
		return nil, ErrAlreadyProcessed
	}
	now := e.now()
	if now.Before(req.MintableAt) {
		return nil, ErrTimelockNotReady
	}

	digest := ApprovalDigest(e.cfg.ProtocolTag, id, req.SourceChainID, e.cfg.Domain)
	signers, err := e.verifier.Verify(e.policy, digest, approvals)
	if err != nil {
		return nil, err
	}

	// Processed flips before the custody credit so a reentrant finalize on
	// the same id aborts; a failed credit unwinds the flip.
	if err := e.processed.Mark(id); err != nil {
		return nil, err
	}
	req.Processed = true
	if err := e.custody.Transfer(ctx, req.Asset, req.Recipient, req.Amount); err != nil {
		e.processed.Unmark(id)
		req.Processed = false
		return nil, err
	}

	out := req.clone()
	e.emit(Event{Type: EventRequestFinalized, Request: out, Operation: op, Signers: signers})
	return &FinalizeResult{Request: out, Operation: op, Signers: signers}, nil
}

// Vote records one validator's advisory approval or rejection of a request.
// The recorded tally never authorizes finalization by itself.
func (e *Engine) Vote(caller common.Address, id common.Hash, approve bool) (*BridgeRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.policy.HasRole(RoleValidator, caller) {
		return nil, ErrUnauthorized
	}
	req, ok := e.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Processed {
		return nil, ErrAlreadyProcessed
	}
	if req.Voted[caller] {
		return nil, ErrAlreadyVoted
	}
	req.Voted[caller] = true
	if approve {
		req.Approvals++
	}

	out := req.clone()
	e.emit(Event{Type: EventVoteRecorded, Request: out, Voter: caller, Approve: approve})
	return out, nil
}

func (e *Engine) emitWindowResets(res Reservation, user common.Address) {
	if res.GlobalReset {
		e.emit(Event{Type: EventWindowReset, Scope: "global"})
	}
	if res.UserReset {
		e.emit(Event{Type: EventWindowReset, Scope: "user", User: user})
	}
}

// --- administrative surface ---

// GrantRole adds account to role. Caller must be an Admin.
func (e *Engine) GrantRole(caller common.Address, role Role, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.policy.Grant(caller, role, account); err != nil {
		return err
	}
	e.emit(Event{Type: EventRoleGranted, Role: role, Account: account})
	return nil
}

// RevokeRole removes account from role. Caller must be an Admin.
func (e *Engine) RevokeRole(caller common.Address, role Role, account common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.policy.Revoke(caller, role, account); err != nil {
		return err
	}
	e.emit(Event{Type: EventRoleRevoked, Role: role, Account: account})
	return nil
}

// SetFeeBps updates the bridge fee. Admin only.
func (e *Engine) SetFeeBps(caller common.Address, bps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	return e.setFeeBps(bps)
}

func (e *Engine) setFeeBps(bps uint64) error {
	if bps > 10000 {
		return fmt.Errorf("bridge: fee %d bps exceeds 100%%", bps)
	}
	e.feeBps = bps
	e.emit(Event{Type: EventFeeUpdated, FeeBps: bps})
	return nil
}

// SetWhitelist toggles an asset. Admin only.
func (e *Engine) SetWhitelist(caller, asset common.Address, whitelisted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	e.setWhitelist(asset, whitelisted)
	return nil
}

func (e *Engine) setWhitelist(asset common.Address, whitelisted bool) {
	if whitelisted {
		e.whitelist[asset] = true
	} else {
		delete(e.whitelist, asset)
	}
	e.emit(Event{Type: EventAssetWhitelisted, Asset: asset, Whitelisted: whitelisted})
}

// Pause halts lifecycle operations. Pauser or Admin.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, true, RolePauser)
}

// Unpause resumes lifecycle operations. Pauser or Admin.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, false, RolePauser)
}

// EmergencyPause halts lifecycle operations. Emergency role.
func (e *Engine) EmergencyPause(caller common.Address) error {
	return e.setPaused(caller, true, RoleEmergency)
}

// EmergencyUnpause resumes lifecycle operations. Emergency role.
func (e *Engine) EmergencyUnpause(caller common.Address) error {
	return e.setPaused(caller, false, RoleEmergency)
}

func (e *Engine) setPaused(caller common.Address, paused bool, role Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(role, caller) && !e.policy.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if e.paused == paused {
		return nil
	}
	e.paused = paused
	if paused {
		e.emit(Event{Type: EventPaused})
	} else {
		e.emit(Event{Type: EventUnpaused})
	}
	return nil
}

// EmergencyWithdraw moves escrowed value out while the system is paused.
// Last-resort recovery path: Emergency role, paused only.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleEmergency, caller) {
		return ErrUnauthorized
	}
	if !e.paused {
		return ErrSystemNotPaused
	}
	if err := e.custody.Transfer(ctx, asset, to, amount); err != nil {
		return err
	}
	e.emit(Event{Type: EventEmergencyWithdraw, Asset: asset, Account: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// ForceResetRateLimits zeroes every window out of band. Admin or Emergency.
func (e *Engine) ForceResetRateLimits(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) && !e.policy.HasRole(RoleEmergency, caller) {
		return ErrUnauthorized
	}
	e.limiter.ForceReset(e.now())
	e.emit(Event{Type: EventWindowReset, Scope: "forced"})
	return nil
}

// SetTimelockDelay changes the delay applied to future schedules. Admin
// only; pending requests keep their captured delay.
func (e *Engine) SetTimelockDelay(caller common.Address, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	e.timelock.SetDelay(d)
	return nil
}

// --- timelocked privileged operations ---

// Timelock operation targets understood by ExecuteOperation.
const (
	TargetUpdateFee     = "fee.update"
	TargetSetWhitelist  = "whitelist.set"
	TargetUpdateDelay   = "timelock.delay"
	TargetGrantRole     = "role.grant"
	TargetRevokeRole    = "role.revoke"
)

// ScheduleOperation queues a privileged call behind the timelock delay.
// Admin only. The payload is JSON and is decoded at execution time.
func (e *Engine) ScheduleOperation(caller common.Address, target string, value *big.Int, payload []byte) (*TimelockRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return nil, ErrUnauthorized
	}
	if value == nil {
		value = new(big.Int)
	}
	req := e.timelock.Schedule(target, value, payload, e.now())
	e.emit(Event{Type: EventTimelockScheduled, Timelock: req})
	return req, nil
}

// ExecuteOperation runs a scheduled call once its delay elapsed. Admin only.
// A failing operation aborts the whole call; the request stays executable.
func (e *Engine) ExecuteOperation(caller common.Address, id string) (*TimelockRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return nil, ErrUnauthorized
	}
	req, err := e.timelock.Execute(id, e.now(), e.applyScheduled)
	if err != nil {
		return nil, err
	}
	e.emit(Event{Type: EventTimelockExecuted, Timelock: req})
	return req, nil
}

// CancelOperation terminates a scheduled call before execution. Admin only.
func (e *Engine) CancelOperation(caller common.Address, id string) (*TimelockRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.policy.HasRole(RoleAdmin, caller) {
		return nil, ErrUnauthorized
	}
	req, err := e.timelock.Cancel(id, e.now())
	if err != nil {
		return nil, err
	}
	e.emit(Event{Type: EventTimelockCanceled, Timelock: req})
	return req, nil
}

// applyScheduled dispatches an executed timelock request to the privileged
// mutation it describes. Runs with the execution lock already held.
func (e *Engine) applyScheduled(target string, _ *big.Int, payload []byte) error {
	switch target {
	case TargetUpdateFee:
		var p struct {
			FeeBps uint64 `json:"fee_bps"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bridge: bad %s payload: %w", target, err)
		}
		return e.setFeeBps(p.FeeBps)
	case TargetSetWhitelist:
		var p struct {
			Asset       common.Address `json:"asset"`
			Whitelisted bool           `json:"whitelisted"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bridge: bad %s payload: %w", target, err)
		}
		e.setWhitelist(p.Asset, p.Whitelisted)
		return nil
	case TargetUpdateDelay:
		var p struct {
			DelaySeconds int64 `json:"delay_seconds"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bridge: bad %s payload: %w", target, err)
		}
		e.timelock.SetDelay(time.Duration(p.DelaySeconds) * time.Second)
		return nil
	case TargetGrantRole, TargetRevokeRole:
		var p struct {
			Role    Role           `json:"role"`
			Account common.Address `json:"account"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("bridge: bad %s payload: %w", target, err)
		}
		if target == TargetGrantRole {
			e.policy.add(p.Role, p.Account)
			e.emit(Event{Type: EventRoleGranted, Role: p.Role, Account: p.Account})
		} else {
			delete(e.policy.members[p.Role], p.Account)
			e.emit(Event{Type: EventRoleRevoked, Role: p.Role, Account: p.Account})
		}
		return nil
	default:
		return fmt.Errorf("bridge: unknown timelock target %q", target)
	}
}

// --- queries ---

// GetRequest returns a copy of the stored request, if any.
func (e *Engine) GetRequest(id common.Hash) (*BridgeRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return nil, false
	}
	return req.clone(), true
}

// ListRequests returns copies of stored requests in creation order, newest
// last, plus the total count.
func (e *Engine) ListRequests(offset, limit int) ([]*BridgeRequest, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := len(e.order)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*BridgeRequest, 0, end-offset)
	for _, id := range e.order[offset:end] {
		out = append(out, e.requests[id].clone())
	}
	return out, total
}

// GetTimelock returns a copy of a scheduled request, if any.
func (e *Engine) GetTimelock(id string) (*TimelockRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelock.Get(id)
}

// ListTimelocks returns copies of all scheduled requests in schedule order.
func (e *Engine) ListTimelocks() []*TimelockRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelock.List()
}

// Paused reports whether lifecycle operations are halted.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// FeeBps returns the current fee in basis points.
func (e *Engine) FeeBps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeBps
}

// IsWhitelisted reports whether asset may be bridged.
func (e *Engine) IsWhitelisted(asset common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.whitelist[asset]
}

// Nonce returns the next request nonce.
func (e *Engine) Nonce() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nonce
}

// TimelockDelay returns the delay applied to future schedules.
func (e *Engine) TimelockDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelock.Delay()
}

// Volumes returns the admitted volume in the current global window and in
// user's window.
func (e *Engine) Volumes(user common.Address) (global, perUser *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limiter.GlobalVolume(), e.limiter.UserVolume(user)
}

// --- boot-time restore ---

// RestoreRequest re-adds a persisted request, keeping its id, nonce and
// processed flag. Used only before the engine starts serving.
func (e *Engine) RestoreRequest(req *BridgeRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := req.clone()
	e.requests[c.ID] = c
	e.order = append(e.order, c.ID)
	if c.Processed {
		e.processed.Restore(c.ID)
	}
	if c.Nonce >= e.nonce {
		e.nonce = c.Nonce + 1
	}
}

// RestoreGrant re-adds a persisted role grant without an Admin check.
func (e *Engine) RestoreGrant(role Role, account common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy.Restore(role, account)
}

// RestoreWhitelist re-adds a persisted whitelist entry.
func (e *Engine) RestoreWhitelist(asset common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whitelist[asset] = true
}

// RestoreTimelock re-adds a persisted timelock request.
func (e *Engine) RestoreTimelock(req *TimelockRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timelock.Restore(req)
}

// RestoreVote re-applies a persisted advisory vote to a restored request.
func (e *Engine) RestoreVote(id common.Hash, voter common.Address, approve bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok || req.Voted[voter] {
		return
	}
	req.Voted[voter] = true
	if approve {
		req.Approvals++
	}
}

// RestoreFeeBps re-applies a persisted fee that superseded the configured
// one (a timelocked fee update from a previous run).
func (e *Engine) RestoreFeeBps(bps uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bps <= 10000 {
		e.feeBps = bps
	}
}

// RestorePaused re-applies the persisted paused flag.
func (e *Engine) RestorePaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}
