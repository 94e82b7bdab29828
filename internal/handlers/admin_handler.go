package handlers

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/services"
)

// AdminHandler serves the direct (non-timelocked) administrative surface.
// Every endpoint forwards the authenticated caller address to the engine,
// which enforces the role checks.
type AdminHandler struct {
	service *services.RelayService
	logger  *logrus.Logger
}

func NewAdminHandler(service *services.RelayService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

type roleRequest struct {
	Role    string `json:"role" binding:"required"`
	Account string `json:"account" binding:"required"`
}

// GrantRole adds an account to a role.
func (h *AdminHandler) GrantRole(c *gin.Context) {
	h.roleChange(c, true)
}

// RevokeRole removes an account from a role.
func (h *AdminHandler) RevokeRole(c *gin.Context) {
	h.roleChange(c, false)
}

func (h *AdminHandler) roleChange(c *gin.Context, grant bool) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	account, err := parseAddressParam(req.Account)
	if err != nil {
		badRequest(c, "Invalid account address")
		return
	}

	if grant {
		err = h.service.GrantRole(caller, bridge.Role(req.Role), account)
	} else {
		err = h.service.RevokeRole(caller, bridge.Role(req.Role), account)
	}
	if err != nil {
		h.writeError(c, "role_change", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"role":    req.Role,
		"account": account.Hex(),
		"granted": grant,
	})
}

// ListRoleMembers returns every member of one role.
func (h *AdminHandler) ListRoleMembers(c *gin.Context) {
	role := bridge.Role(c.Param("role"))
	members := h.service.Engine().Policy().Members(role)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"role":    role,
		"members": members,
	})
}

type feeRequest struct {
	FeeBps uint64 `json:"fee_bps"`
}

// SetFee applies a new fee immediately. Fee changes can also go through the
// timelock via the schedule endpoint.
func (h *AdminHandler) SetFee(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req feeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.service.SetFeeBps(caller, req.FeeBps); err != nil {
		h.writeError(c, "set_fee", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"fee_bps": req.FeeBps,
	})
}

type whitelistRequest struct {
	Asset       string `json:"asset" binding:"required"`
	Whitelisted *bool  `json:"whitelisted" binding:"required"`
}

// SetWhitelist adds or removes an asset from the bridgeable set.
func (h *AdminHandler) SetWhitelist(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	asset, err := parseAddressParam(req.Asset)
	if err != nil {
		badRequest(c, "Invalid asset address")
		return
	}

	if err := h.service.SetWhitelist(caller, asset, *req.Whitelisted); err != nil {
		h.writeError(c, "set_whitelist", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"asset":       asset.Hex(),
		"whitelisted": *req.Whitelisted,
	})
}

// Pause halts user-facing operations.
func (h *AdminHandler) Pause(c *gin.Context) {
	h.pauseChange(c, h.service.Pause, true)
}

// Unpause resumes user-facing operations.
func (h *AdminHandler) Unpause(c *gin.Context) {
	h.pauseChange(c, h.service.Unpause, false)
}

// EmergencyPause halts operations via the emergency role.
func (h *AdminHandler) EmergencyPause(c *gin.Context) {
	h.pauseChange(c, h.service.EmergencyPause, true)
}

// EmergencyUnpause resumes operations via the emergency role.
func (h *AdminHandler) EmergencyUnpause(c *gin.Context) {
	h.pauseChange(c, h.service.EmergencyUnpause, false)
}

func (h *AdminHandler) pauseChange(c *gin.Context, op func(common.Address) error, paused bool) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	if err := op(caller); err != nil {
		h.writeError(c, "pause_change", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"paused":  paused,
	})
}

type emergencyWithdrawRequest struct {
	Asset  string `json:"asset" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// EmergencyWithdraw drains escrowed funds while the system is paused.
func (h *AdminHandler) EmergencyWithdraw(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req emergencyWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	asset, err := parseAddressParam(req.Asset)
	if err != nil {
		badRequest(c, "Invalid asset address")
		return
	}
	to, err := parseAddressParam(req.To)
	if err != nil {
		badRequest(c, "Invalid destination address")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		badRequest(c, "Invalid amount")
		return
	}

	if err := h.service.EmergencyWithdraw(c.Request.Context(), caller, asset, to, amount); err != nil {
		h.writeError(c, "emergency_withdraw", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"caller": caller.Hex(),
		"asset":  asset.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	}).Warn("Emergency withdrawal executed")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"asset":   asset.Hex(),
		"to":      to.Hex(),
		"amount":  amount.String(),
	})
}

// ForceResetRateLimits zeroes all rate-limit windows immediately.
func (h *AdminHandler) ForceResetRateLimits(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.service.ForceResetRateLimits(caller); err != nil {
		h.writeError(c, "force_reset_limits", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type delayRequest struct {
	DelaySeconds int64 `json:"delay_seconds" binding:"required"`
}

// SetTimelockDelay changes the delay for future scheduled operations.
func (h *AdminHandler) SetTimelockDelay(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req delayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DelaySeconds < 0 {
		badRequest(c, "Invalid delay")
		return
	}

	if err := h.service.SetTimelockDelay(c.Request.Context(), caller, time.Duration(req.DelaySeconds)*time.Second); err != nil {
		h.writeError(c, "set_timelock_delay", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"delay_seconds": req.DelaySeconds,
	})
}

// ListEvents pages through the audit trail.
func (h *AdminHandler) ListEvents(c *gin.Context) {
	page, pageSize := pagination(c)

	events, total, err := h.service.ListEvents(c.Request.Context(), page, pageSize, c.Query("type"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list events",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"events":    events,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *AdminHandler) writeError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).WithField("operation", op).Warn("Admin operation rejected")
	c.JSON(engineErrorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    engineErrorCode(err),
	})
}
