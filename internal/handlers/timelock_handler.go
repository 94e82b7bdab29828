package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/services"
)

// TimelockHandler serves the delayed privileged-operation endpoints. All of
// them sit behind admin auth; the engine additionally checks the caller
// address against the admin role.
type TimelockHandler struct {
	service *services.RelayService
	logger  *logrus.Logger
}

func NewTimelockHandler(service *services.RelayService, logger *logrus.Logger) *TimelockHandler {
	return &TimelockHandler{service: service, logger: logger}
}

type scheduleRequest struct {
	Target  string          `json:"target" binding:"required"`
	Value   string          `json:"value"`
	Payload json.RawMessage `json:"payload"`
}

// Schedule queues a privileged operation behind the configured delay.
func (h *TimelockHandler) Schedule(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	value := big.NewInt(0)
	if req.Value != "" {
		parsed, ok := new(big.Int).SetString(req.Value, 10)
		if !ok || parsed.Sign() < 0 {
			badRequest(c, "Invalid value")
			return
		}
		value = parsed
	}

	out, err := h.service.ScheduleOperation(c.Request.Context(), caller, req.Target, value, req.Payload)
	if err != nil {
		h.writeError(c, "schedule", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"timelock": out,
		"ready_at": out.ReadyAt(),
	})
}

// Execute applies a matured operation.
func (h *TimelockHandler) Execute(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	out, err := h.service.ExecuteOperation(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, "execute", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"timelock": out,
	})
}

// Cancel discards a pending operation.
func (h *TimelockHandler) Cancel(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	out, err := h.service.CancelOperation(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, "cancel", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"timelock": out,
	})
}

// Get returns the live engine record for one timelock id.
func (h *TimelockHandler) Get(c *gin.Context) {
	out, ok := h.service.Engine().GetTimelock(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Timelock request not found",
			"code":    "TIMELOCK_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"timelock": out,
		"ready_at": out.ReadyAt(),
	})
}

// List pages through the persisted timelock ledger.
func (h *TimelockHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)

	records, total, err := h.service.ListTimelockRecords(c.Request.Context(), page, pageSize, c.Query("status"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list timelock records")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list timelock records",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timelocks": records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *TimelockHandler) writeError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).WithField("operation", op).Warn("Timelock operation rejected")
	c.JSON(engineErrorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    engineErrorCode(err),
	})
}
