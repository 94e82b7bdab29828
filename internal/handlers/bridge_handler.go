package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/services"
)

// BridgeHandler serves the request lifecycle endpoints.
type BridgeHandler struct {
	service *services.RelayService
	logger  *logrus.Logger
}

func NewBridgeHandler(service *services.RelayService, logger *logrus.Logger) *BridgeHandler {
	return &BridgeHandler{service: service, logger: logger}
}

type transferRequest struct {
	Asset         string `json:"asset" binding:"required"`
	Recipient     string `json:"recipient" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	TargetChainID uint64 `json:"target_chain_id" binding:"required"`
}

type finalizeRequest struct {
	RequestID string   `json:"request_id" binding:"required"`
	Approvals []string `json:"approvals" binding:"required"`
}

type voteRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Approve   *bool  `json:"approve" binding:"required"`
}

// Lock escrows tokens for a cross-chain transfer.
func (h *BridgeHandler) Lock(c *gin.Context) {
	h.createRequest(c, "lock")
}

// Burn destroys wrapped tokens for the return leg.
func (h *BridgeHandler) Burn(c *gin.Context) {
	h.createRequest(c, "burn")
}

func (h *BridgeHandler) createRequest(c *gin.Context, kind string) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	asset, err := parseAddressParam(req.Asset)
	if err != nil {
		badRequest(c, "Invalid asset address")
		return
	}
	recipient, err := parseAddressParam(req.Recipient)
	if err != nil {
		badRequest(c, "Invalid recipient address")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		badRequest(c, "Invalid amount")
		return
	}

	var out *bridge.BridgeRequest
	if kind == "lock" {
		out, err = h.service.Lock(c.Request.Context(), caller, asset, recipient, amount, req.TargetChainID)
	} else {
		out, err = h.service.Burn(c.Request.Context(), caller, asset, recipient, amount, req.TargetChainID)
	}
	if err != nil {
		h.writeEngineError(c, kind, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"request": out,
	})
}

// Mint finalizes a transfer on the target side.
func (h *BridgeHandler) Mint(c *gin.Context) {
	h.finalize(c, "mint")
}

// Unlock releases escrowed tokens on the return leg.
func (h *BridgeHandler) Unlock(c *gin.Context) {
	h.finalize(c, "unlock")
}

func (h *BridgeHandler) finalize(c *gin.Context, op string) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	id, err := parseHashParam(req.RequestID)
	if err != nil {
		badRequest(c, "Invalid request id")
		return
	}
	approvals, err := parseApprovals(req.Approvals)
	if err != nil {
		badRequest(c, "Invalid approval signature encoding")
		return
	}

	var res *bridge.FinalizeResult
	if op == "mint" {
		res, err = h.service.Mint(c.Request.Context(), caller, id, approvals)
	} else {
		res, err = h.service.Unlock(c.Request.Context(), caller, id, approvals)
	}
	if err != nil {
		h.writeEngineError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"operation": res.Operation,
		"request":   res.Request,
		"signers":   res.Signers,
	})
}

// Vote records a validator's advisory vote on a pending request.
func (h *BridgeHandler) Vote(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	id, err := parseHashParam(req.RequestID)
	if err != nil {
		badRequest(c, "Invalid request id")
		return
	}

	out, err := h.service.Vote(c.Request.Context(), caller, id, *req.Approve)
	if err != nil {
		h.writeEngineError(c, "vote", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"approvals": out.Approvals,
		"request":   out,
	})
}

// GetRequest returns the live engine record for one request id.
func (h *BridgeHandler) GetRequest(c *gin.Context) {
	id, err := parseHashParam(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid request id")
		return
	}

	req, ok := h.service.Engine().GetRequest(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Request not found",
			"code":    "NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"request": req,
	})
}

// ListRequests pages through the persisted request ledger.
func (h *BridgeHandler) ListRequests(c *gin.Context) {
	page, pageSize := pagination(c)

	var processed *bool
	if raw := c.Query("processed"); raw != "" {
		v := raw == "true"
		processed = &v
	}
	kind := c.Query("kind")

	records, total, err := h.service.ListRequests(c.Request.Context(), page, pageSize, processed, kind)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list requests")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list requests",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"requests":  records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListVotes returns the advisory vote trail for one request.
func (h *BridgeHandler) ListVotes(c *gin.Context) {
	id, err := parseHashParam(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid request id")
		return
	}

	votes, err := h.service.ListVotes(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list votes")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list votes",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"votes":   votes,
	})
}

func (h *BridgeHandler) writeEngineError(c *gin.Context, op string, err error) {
	status := engineErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("operation", op).Error("Bridge operation failed")
	} else {
		h.logger.WithError(err).WithField("operation", op).Warn("Bridge operation rejected")
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    engineErrorCode(err),
	})
}

func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, bridge.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrRequestNotFound),
		errors.Is(err, bridge.ErrTimelockNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrAlreadyProcessed),
		errors.Is(err, bridge.ErrAlreadyVoted),
		errors.Is(err, bridge.ErrTimelockAlreadyExecuted),
		errors.Is(err, bridge.ErrTimelockAlreadyCanceled),
		errors.Is(err, bridge.ErrSystemPaused),
		errors.Is(err, bridge.ErrSystemNotPaused):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, bridge.ErrAmountOutOfBounds),
		errors.Is(err, bridge.ErrInvalidChainID),
		errors.Is(err, bridge.ErrAssetNotWhitelisted),
		errors.Is(err, bridge.ErrInsufficientApprovals),
		errors.Is(err, bridge.ErrInvalidApprovalSignature),
		errors.Is(err, bridge.ErrTimelockNotReady),
		errors.Is(err, bridge.ErrInsufficientBalance),
		errors.Is(err, bridge.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func engineErrorCode(err error) string {
	switch {
	case errors.Is(err, bridge.ErrSystemPaused):
		return "SYSTEM_PAUSED"
	case errors.Is(err, bridge.ErrSystemNotPaused):
		return "SYSTEM_NOT_PAUSED"
	case errors.Is(err, bridge.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, bridge.ErrAssetNotWhitelisted):
		return "ASSET_NOT_WHITELISTED"
	case errors.Is(err, bridge.ErrAmountOutOfBounds):
		return "AMOUNT_OUT_OF_BOUNDS"
	case errors.Is(err, bridge.ErrInvalidChainID):
		return "INVALID_CHAIN_ID"
	case errors.Is(err, bridge.ErrRateLimitExceeded):
		return "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, bridge.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, bridge.ErrInsufficientAllowance):
		return "INSUFFICIENT_ALLOWANCE"
	case errors.Is(err, bridge.ErrRequestNotFound):
		return "REQUEST_NOT_FOUND"
	case errors.Is(err, bridge.ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, bridge.ErrInsufficientApprovals):
		return "INSUFFICIENT_APPROVALS"
	case errors.Is(err, bridge.ErrInvalidApprovalSignature):
		return "INVALID_APPROVAL_SIGNATURE"
	case errors.Is(err, bridge.ErrAlreadyVoted):
		return "ALREADY_VOTED"
	case errors.Is(err, bridge.ErrTimelockNotFound):
		return "TIMELOCK_NOT_FOUND"
	case errors.Is(err, bridge.ErrTimelockNotReady):
		return "TIMELOCK_NOT_READY"
	case errors.Is(err, bridge.ErrTimelockAlreadyExecuted):
		return "TIMELOCK_ALREADY_EXECUTED"
	case errors.Is(err, bridge.ErrTimelockAlreadyCanceled):
		return "TIMELOCK_ALREADY_CANCELED"
	default:
		return "INTERNAL_ERROR"
	}
}

// callerAddress pulls the authenticated caller out of the gin context.
func callerAddress(c *gin.Context) (common.Address, bool) {
	raw := c.GetString("caller_address")
	addr, err := parseAddressParam(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Missing or invalid caller identity",
			"code":    "INVALID_CALLER",
		})
		c.Abort()
		return common.Address{}, false
	}
	return addr, true
}

func parseAddressParam(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("not a hex address")
	}
	return common.HexToAddress(s), nil
}

func parseHashParam(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, errors.New("hash must be 32 bytes")
	}
	return common.BytesToHash(b), nil
}

func parseApprovals(raw []string) ([][]byte, error) {
	out := make([][]byte, 0, len(raw))
	for _, s := range raw {
		sig, err := hexutil.Decode(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"code":    "INVALID_REQUEST",
	})
}
