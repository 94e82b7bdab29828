package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/config"
	"bridge-relay/internal/events"
	"bridge-relay/internal/metrics"
	"bridge-relay/internal/models"
	"bridge-relay/internal/repository"
)

// RelayService owns the in-memory engine and keeps the database mirror, the
// NATS bus and the websocket feed in sync with it. The engine is the
// authority for every decision; the database is an append-mostly mirror used
// for queries and boot-time state restoration.
type RelayService struct {
	engine    *bridge.Engine
	requests  repository.BridgeRequestRepository
	timelocks repository.TimelockRepository
	state     repository.StateRepository
	publisher *events.Publisher
	hub       *EventHub
	logger    *logrus.Logger

	// Engine sinks run with the execution lock held, so events are handed
	// to a consumer goroutine instead of being processed inline.
	eventCh chan bridge.Event
	done    chan struct{}
}

func NewRelayService(
	custody bridge.CustodyAdapter,
	requests repository.BridgeRequestRepository,
	timelocks repository.TimelockRepository,
	state repository.StateRepository,
	publisher *events.Publisher,
	hub *EventHub,
	logger *logrus.Logger,
) (*RelayService, error) {
	s := &RelayService{
		requests:  requests,
		timelocks: timelocks,
		state:     state,
		publisher: publisher,
		hub:       hub,
		logger:    logger,
		eventCh:   make(chan bridge.Event, 256),
		done:      make(chan struct{}),
	}

	engine, err := bridge.New(engineConfig(config.AppConfig.Bridge), custody, s.enqueueEvent)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	go s.consumeEvents()
	return s, nil
}

func engineConfig(b config.BridgeConfig) bridge.Config {
	threshold := b.Threshold
	if threshold == 0 {
		threshold = bridge.DefaultThreshold(b.MinValidators)
	}
	return bridge.Config{
		SourceChainID: b.SourceChainID,
		EscrowAccount: common.HexToAddress(b.EscrowAccount),
		ProtocolTag:   b.ProtocolTag,
		Domain:        []byte(b.Domain),
		FeeBps:        b.FeeBps,
		MinAmount:     config.Amount(b.MinAmount),
		MaxAmount:     config.Amount(b.MaxAmount),
		GlobalCap:     config.Amount(b.GlobalDailyCap),
		UserCap:       config.Amount(b.UserDailyCap),
		WindowPeriod:  b.WindowPeriod(),
		MintDelay:     time.Duration(b.MintDelaySeconds) * time.Second,
		TimelockDelay: time.Duration(b.TimelockDelaySeconds) * time.Second,
		Consensus: bridge.ConsensusConfig{
			MinValidators: b.MinValidators,
			Threshold:     threshold,
		},
		Admin: common.HexToAddress(b.AdminAddress),
	}
}

// Engine exposes the engine for read-only queries.
func (s *RelayService) Engine() *bridge.Engine {
	return s.engine
}

// Close stops the event consumer and drains the NATS connection.
func (s *RelayService) Close() {
	close(s.done)
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.hub != nil {
		s.hub.Shutdown()
	}
}

// Lock escrows tokens on the source side and records the request.
func (s *RelayService) Lock(ctx context.Context, caller, asset, recipient common.Address, amount *big.Int, targetChain uint64) (*bridge.BridgeRequest, error) {
	req, err := s.engine.Lock(ctx, caller, asset, recipient, amount, targetChain)
	if err != nil {
		s.countError("lock", err)
		return nil, err
	}
	s.mirrorRequest(ctx, req)
	metrics.RequestsCreated.WithLabelValues(string(req.Kind)).Inc()
	return req, nil
}

// Burn destroys tokens on the source side and records the request.
func (s *RelayService) Burn(ctx context.Context, caller, asset, recipient common.Address, amount *big.Int, targetChain uint64) (*bridge.BridgeRequest, error) {
	req, err := s.engine.Burn(ctx, caller, asset, recipient, amount, targetChain)
	if err != nil {
		s.countError("burn", err)
		return nil, err
	}
	s.mirrorRequest(ctx, req)
	metrics.RequestsCreated.WithLabelValues(string(req.Kind)).Inc()
	return req, nil
}

// Mint finalizes a request with a validator signature quorum.
func (s *RelayService) Mint(ctx context.Context, caller common.Address, id common.Hash, approvals [][]byte) (*bridge.FinalizeResult, error) {
	return s.finalize(ctx, "mint", caller, id, approvals)
}

// Unlock releases escrowed tokens with a validator signature quorum.
func (s *RelayService) Unlock(ctx context.Context, caller common.Address, id common.Hash, approvals [][]byte) (*bridge.FinalizeResult, error) {
	return s.finalize(ctx, "unlock", caller, id, approvals)
}

func (s *RelayService) finalize(ctx context.Context, op string, caller common.Address, id common.Hash, approvals [][]byte) (*bridge.FinalizeResult, error) {
	var (
		res *bridge.FinalizeResult
		err error
	)
	if op == "mint" {
		res, err = s.engine.Mint(ctx, caller, id, approvals)
	} else {
		res, err = s.engine.Unlock(ctx, caller, id, approvals)
	}
	if err != nil {
		s.countError(op, err)
		return nil, err
	}

	if dberr := s.requests.MarkFinalized(ctx, res.Request.ID.Hex(), res.Operation, marshalSigners(res.Signers), time.Now()); dberr != nil {
		s.logger.WithError(dberr).WithField("request_id", res.Request.ID.Hex()).Error("failed to mirror finalization")
	}
	metrics.RequestsFinalized.WithLabelValues(res.Operation).Inc()
	return res, nil
}

// Vote records one validator's advisory vote.
func (s *RelayService) Vote(ctx context.Context, caller common.Address, id common.Hash, approve bool) (*bridge.BridgeRequest, error) {
	req, err := s.engine.Vote(caller, id, approve)
	if err != nil {
		s.countError("vote", err)
		return nil, err
	}
	if dberr := s.requests.CreateVote(ctx, &models.ValidatorVote{
		RequestID: id.Hex(),
		Voter:     caller.Hex(),
		Approve:   approve,
		CreatedAt: time.Now(),
	}); dberr != nil {
		s.logger.WithError(dberr).WithField("request_id", id.Hex()).Error("failed to mirror vote")
	}
	metrics.VotesRecorded.Inc()
	return req, nil
}

func (s *RelayService) GrantRole(caller common.Address, role bridge.Role, account common.Address) error {
	return s.adminOp("grant_role", s.engine.GrantRole(caller, role, account))
}

func (s *RelayService) RevokeRole(caller common.Address, role bridge.Role, account common.Address) error {
	return s.adminOp("revoke_role", s.engine.RevokeRole(caller, role, account))
}

func (s *RelayService) SetFeeBps(caller common.Address, bps uint64) error {
	return s.adminOp("set_fee", s.engine.SetFeeBps(caller, bps))
}

func (s *RelayService) SetWhitelist(caller, asset common.Address, whitelisted bool) error {
	return s.adminOp("set_whitelist", s.engine.SetWhitelist(caller, asset, whitelisted))
}

func (s *RelayService) Pause(caller common.Address) error {
	return s.adminOp("pause", s.engine.Pause(caller))
}

func (s *RelayService) Unpause(caller common.Address) error {
	return s.adminOp("unpause", s.engine.Unpause(caller))
}

func (s *RelayService) EmergencyPause(caller common.Address) error {
	return s.adminOp("emergency_pause", s.engine.EmergencyPause(caller))
}

func (s *RelayService) EmergencyUnpause(caller common.Address) error {
	return s.adminOp("emergency_unpause", s.engine.EmergencyUnpause(caller))
}

func (s *RelayService) EmergencyWithdraw(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error {
	return s.adminOp("emergency_withdraw", s.engine.EmergencyWithdraw(ctx, caller, asset, to, amount))
}

func (s *RelayService) ForceResetRateLimits(caller common.Address) error {
	return s.adminOp("force_reset_limits", s.engine.ForceResetRateLimits(caller))
}

func (s *RelayService) SetTimelockDelay(ctx context.Context, caller common.Address, d time.Duration) error {
	if err := s.adminOp("set_timelock_delay", s.engine.SetTimelockDelay(caller, d)); err != nil {
		return err
	}
	s.persistTimelockDelay(ctx, caller.Hex())
	return nil
}

func (s *RelayService) adminOp(op string, err error) error {
	if err != nil {
		s.countError(op, err)
	}
	return err
}

// ScheduleOperation queues a privileged call behind the timelock.
func (s *RelayService) ScheduleOperation(ctx context.Context, caller common.Address, target string, value *big.Int, payload []byte) (*bridge.TimelockRequest, error) {
	req, err := s.engine.ScheduleOperation(caller, target, value, payload)
	if err != nil {
		s.countError("timelock_schedule", err)
		return nil, err
	}
	if dberr := s.timelocks.Create(ctx, timelockRecord(req, caller.Hex())); dberr != nil {
		s.logger.WithError(dberr).WithField("timelock_id", req.ID).Error("failed to mirror timelock request")
	}
	metrics.TimelockOperations.WithLabelValues("scheduled").Inc()
	return req, nil
}

// ExecuteOperation applies a matured timelocked call.
func (s *RelayService) ExecuteOperation(ctx context.Context, caller common.Address, id string) (*bridge.TimelockRequest, error) {
	req, err := s.engine.ExecuteOperation(caller, id)
	if err != nil {
		s.countError("timelock_execute", err)
		return nil, err
	}
	if dberr := s.timelocks.MarkExecuted(ctx, req.ID, time.Now()); dberr != nil {
		s.logger.WithError(dberr).WithField("timelock_id", req.ID).Error("failed to mirror timelock execution")
	}
	if req.Target == bridge.TargetUpdateDelay {
		s.persistTimelockDelay(ctx, caller.Hex())
	}
	metrics.TimelockOperations.WithLabelValues("executed").Inc()
	return req, nil
}

// CancelOperation discards a pending timelocked call.
func (s *RelayService) CancelOperation(ctx context.Context, caller common.Address, id string) (*bridge.TimelockRequest, error) {
	req, err := s.engine.CancelOperation(caller, id)
	if err != nil {
		s.countError("timelock_cancel", err)
		return nil, err
	}
	if dberr := s.timelocks.MarkCanceled(ctx, req.ID, time.Now()); dberr != nil {
		s.logger.WithError(dberr).WithField("timelock_id", req.ID).Error("failed to mirror timelock cancellation")
	}
	metrics.TimelockOperations.WithLabelValues("canceled").Inc()
	return req, nil
}

func (s *RelayService) persistTimelockDelay(ctx context.Context, updatedBy string) {
	seconds := int64(s.engine.TimelockDelay() / time.Second)
	if err := s.state.SetGlobalConfig(ctx, "timelock_delay_seconds", strconv.FormatInt(seconds, 10), updatedBy); err != nil {
		s.logger.WithError(err).Error("failed to persist timelock delay")
	}
}

// ListRequests pages through the persisted request ledger.
func (s *RelayService) ListRequests(ctx context.Context, page, pageSize int, processed *bool, kind string) ([]*models.BridgeRequestRecord, int64, error) {
	return s.requests.List(ctx, page, pageSize, processed, kind)
}

// ListVotes returns the advisory vote trail for one request.
func (s *RelayService) ListVotes(ctx context.Context, id common.Hash) ([]*models.ValidatorVote, error) {
	return s.requests.ListVotes(ctx, id.Hex())
}

// ListTimelockRecords pages through the persisted timelock ledger.
func (s *RelayService) ListTimelockRecords(ctx context.Context, page, pageSize int, status string) ([]*models.TimelockRecord, int64, error) {
	return s.timelocks.List(ctx, page, pageSize, status)
}

// ListEvents pages through the audit trail.
func (s *RelayService) ListEvents(ctx context.Context, page, pageSize int, eventType string) ([]*models.RelayEvent, int64, error) {
	return s.state.ListEvents(ctx, page, pageSize, eventType)
}

// Restore replays persisted state into a freshly constructed engine. Call
// once at boot, before serving traffic.
func (s *RelayService) Restore(ctx context.Context) error {
	records, err := s.requests.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		req, err := requestFromRecord(rec)
		if err != nil {
			s.logger.WithError(err).WithField("request_id", rec.RequestID).Error("skipping unreadable request record")
			continue
		}
		s.engine.RestoreRequest(req)
	}

	votes, err := s.requests.ListAllVotes(ctx)
	if err != nil {
		return err
	}
	for _, v := range votes {
		s.engine.RestoreVote(common.HexToHash(v.RequestID), common.HexToAddress(v.Voter), v.Approve)
	}

	grants, err := s.state.ListRoleGrants(ctx)
	if err != nil {
		return err
	}
	for _, g := range grants {
		s.engine.RestoreGrant(bridge.Role(g.Role), common.HexToAddress(g.Account))
	}

	assets, err := s.state.ListWhitelist(ctx)
	if err != nil {
		return err
	}
	for _, a := range assets {
		s.engine.RestoreWhitelist(common.HexToAddress(a.Asset))
	}

	locks, err := s.timelocks.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range locks {
		s.engine.RestoreTimelock(timelockFromRecord(rec))
	}

	if v, err := s.state.GetGlobalConfig(ctx, "paused"); err == nil {
		paused := v == "true"
		s.engine.RestorePaused(paused)
		if paused {
			metrics.SystemPaused.Set(1)
		}
	}
	if v, err := s.state.GetGlobalConfig(ctx, "fee_bps"); err == nil {
		if bps, perr := strconv.ParseUint(v, 10, 64); perr == nil {
			s.engine.RestoreFeeBps(bps)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"requests":  len(records),
		"votes":     len(votes),
		"grants":    len(grants),
		"whitelist": len(assets),
		"timelocks": len(locks),
		"nonce":     s.engine.Nonce(),
	}).Info("engine state restored")
	return nil
}

// enqueueEvent is the engine sink. It runs with the engine lock held, so it
// only hands the event off; a full channel drops the event rather than
// stalling the engine.
func (s *RelayService) enqueueEvent(ev bridge.Event) {
	select {
	case s.eventCh <- ev:
	default:
		s.logger.WithField("type", ev.Type).Warn("event buffer full, dropping event")
	}
}

func (s *RelayService) consumeEvents() {
	for {
		select {
		case ev := <-s.eventCh:
			s.handleEvent(ev)
		case <-s.done:
			return
		}
	}
}

func (s *RelayService) handleEvent(ev bridge.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if payload, err := json.Marshal(ev); err == nil {
		if dberr := s.state.AppendEvent(ctx, string(ev.Type), string(payload)); dberr != nil {
			s.logger.WithError(dberr).WithField("type", ev.Type).Error("failed to append audit event")
		}
	}

	// Administrative events carry the whole state change, so the mirror
	// tables are maintained from here. Request and timelock rows are
	// written synchronously by the calling wrapper instead.
	switch ev.Type {
	case bridge.EventRoleGranted:
		if err := s.state.GrantRole(ctx, string(ev.Role), ev.Account.Hex(), ""); err != nil {
			s.logger.WithError(err).Error("failed to mirror role grant")
		}
	case bridge.EventRoleRevoked:
		if err := s.state.RevokeRole(ctx, string(ev.Role), ev.Account.Hex()); err != nil {
			s.logger.WithError(err).Error("failed to mirror role revocation")
		}
	case bridge.EventAssetWhitelisted:
		var err error
		if ev.Whitelisted {
			err = s.state.AddWhitelist(ctx, ev.Asset.Hex())
		} else {
			err = s.state.RemoveWhitelist(ctx, ev.Asset.Hex())
		}
		if err != nil {
			s.logger.WithError(err).Error("failed to mirror whitelist change")
		}
	case bridge.EventFeeUpdated:
		if err := s.state.SetGlobalConfig(ctx, "fee_bps", strconv.FormatUint(ev.FeeBps, 10), ""); err != nil {
			s.logger.WithError(err).Error("failed to mirror fee update")
		}
	case bridge.EventPaused:
		metrics.SystemPaused.Set(1)
		if err := s.state.SetGlobalConfig(ctx, "paused", "true", ""); err != nil {
			s.logger.WithError(err).Error("failed to mirror paused flag")
		}
	case bridge.EventUnpaused:
		metrics.SystemPaused.Set(0)
		if err := s.state.SetGlobalConfig(ctx, "paused", "false", ""); err != nil {
			s.logger.WithError(err).Error("failed to mirror paused flag")
		}
	case bridge.EventRateLimitExceeded:
		metrics.RateLimitRejections.Inc()
	case bridge.EventWindowReset:
		metrics.WindowResets.WithLabelValues(ev.Scope).Inc()
	}

	s.publisher.Publish(ev)
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

func (s *RelayService) countError(op string, err error) {
	metrics.OperationErrors.WithLabelValues(op, errorReason(err)).Inc()
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, bridge.ErrSystemPaused):
		return "paused"
	case errors.Is(err, bridge.ErrSystemNotPaused):
		return "not_paused"
	case errors.Is(err, bridge.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, bridge.ErrAssetNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, bridge.ErrAmountOutOfBounds):
		return "amount_bounds"
	case errors.Is(err, bridge.ErrInvalidChainID):
		return "chain_id"
	case errors.Is(err, bridge.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, bridge.ErrInsufficientBalance):
		return "balance"
	case errors.Is(err, bridge.ErrInsufficientAllowance):
		return "allowance"
	case errors.Is(err, bridge.ErrRequestNotFound):
		return "not_found"
	case errors.Is(err, bridge.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, bridge.ErrInsufficientApprovals):
		return "insufficient_approvals"
	case errors.Is(err, bridge.ErrInvalidApprovalSignature):
		return "bad_signature"
	case errors.Is(err, bridge.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, bridge.ErrTimelockNotReady):
		return "timelock_not_ready"
	case errors.Is(err, bridge.ErrTimelockNotFound):
		return "timelock_not_found"
	default:
		return "other"
	}
}

func (s *RelayService) mirrorRequest(ctx context.Context, req *bridge.BridgeRequest) {
	if err := s.requests.Create(ctx, requestRecord(req)); err != nil {
		s.logger.WithError(err).WithField("request_id", req.ID.Hex()).Error("failed to mirror request")
	}
}

func requestRecord(req *bridge.BridgeRequest) *models.BridgeRequestRecord {
	return &models.BridgeRequestRecord{
		RequestID:     req.ID.Hex(),
		Kind:          string(req.Kind),
		Asset:         req.Asset.Hex(),
		Sender:        req.Sender.Hex(),
		Recipient:     req.Recipient.Hex(),
		Amount:        req.Amount.String(),
		Fee:           req.Fee.String(),
		GrossAmount:   req.GrossAmount.String(),
		SourceChainID: req.SourceChainID,
		TargetChainID: req.TargetChainID,
		Nonce:         req.Nonce,
		Processed:     req.Processed,
		MintableAt:    req.MintableAt,
		CreatedAt:     req.CreatedAt,
	}
}

func requestFromRecord(rec *models.BridgeRequestRecord) (*bridge.BridgeRequest, error) {
	amount, ok := new(big.Int).SetString(rec.Amount, 10)
	if !ok {
		return nil, errors.New("malformed amount")
	}
	fee, ok := new(big.Int).SetString(rec.Fee, 10)
	if !ok {
		return nil, errors.New("malformed fee")
	}
	gross, ok := new(big.Int).SetString(rec.GrossAmount, 10)
	if !ok {
		return nil, errors.New("malformed gross amount")
	}
	return &bridge.BridgeRequest{
		ID:            common.HexToHash(rec.RequestID),
		Kind:          bridge.RequestKind(rec.Kind),
		Asset:         common.HexToAddress(rec.Asset),
		Sender:        common.HexToAddress(rec.Sender),
		Recipient:     common.HexToAddress(rec.Recipient),
		Amount:        amount,
		Fee:           fee,
		GrossAmount:   gross,
		SourceChainID: rec.SourceChainID,
		TargetChainID: rec.TargetChainID,
		Nonce:         rec.Nonce,
		Processed:     rec.Processed,
		CreatedAt:     rec.CreatedAt,
		MintableAt:    rec.MintableAt,
	}, nil
}

func timelockRecord(req *bridge.TimelockRequest, scheduledBy string) *models.TimelockRecord {
	value := "0"
	if req.Value != nil {
		value = req.Value.String()
	}
	return &models.TimelockRecord{
		TimelockID:   req.ID,
		Target:       req.Target,
		Value:        value,
		Payload:      string(req.Payload),
		DelaySeconds: int64(req.Delay / time.Second),
		Status:       models.TimelockStatusScheduled,
		ScheduledBy:  scheduledBy,
		CreatedAt:    req.CreatedAt,
	}
}

func timelockFromRecord(rec *models.TimelockRecord) *bridge.TimelockRequest {
	value, ok := new(big.Int).SetString(rec.Value, 10)
	if !ok {
		value = big.NewInt(0)
	}
	return &bridge.TimelockRequest{
		ID:         rec.TimelockID,
		Target:     rec.Target,
		Value:      value,
		Payload:    []byte(rec.Payload),
		Delay:      time.Duration(rec.DelaySeconds) * time.Second,
		CreatedAt:  rec.CreatedAt,
		Executed:   rec.Status == models.TimelockStatusExecuted,
		Canceled:   rec.Status == models.TimelockStatusCanceled,
		ExecutedAt: rec.ExecutedAt,
		CanceledAt: rec.CanceledAt,
	}
}

func marshalSigners(signers []common.Address) string {
	hexes := make([]string, 0, len(signers))
	for _, s := range signers {
		hexes = append(hexes, s.Hex())
	}
	out, _ := json.Marshal(hexes)
	return string(out)
}
