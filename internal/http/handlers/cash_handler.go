package handlers

import (
	"strconv"
	"time"

	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/middleware"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CashHandler is the cash device surface: verify-and-lock, confirm, and the
// trigger lifecycle including the long-poll wait.
type CashHandler struct {
	tokens   *services.TokenService
	triggers *services.TriggerService
	log      *zap.Logger
}

func NewCashHandler(tokens *services.TokenService, triggers *services.TriggerService, log *zap.Logger) *CashHandler {
	return &CashHandler{tokens: tokens, triggers: triggers, log: log}
}

// VerifyAndLock claims an open token by its radio code.
func (h *CashHandler) VerifyAndLock(c *fiber.Ctx) error {
	deviceUUID, err := uuid.Parse(c.Query("device_uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
	}

	customerID := middleware.GetCustomerID(c)
	token, err := h.tokens.VerifyAndLock(c.Context(), customerID, deviceUUID, c.Params("radiocode"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(token)
}

// Confirm finalizes a locked token with the settlement outcome.
func (h *CashHandler) Confirm(c *fiber.Ctx) error {
	tokenUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token uuid"})
	}
	deviceUUID, err := uuid.Parse(c.Query("device_uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
	}

	var req dto.ConfirmTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	customerID := middleware.GetCustomerID(c)
	token, err := h.tokens.Confirm(c.Context(), customerID, deviceUUID, tokenUUID, services.ConfirmRequest{
		State:          req.State,
		LockRefName:    req.LockRefName,
		Amount:         req.Amount,
		ProcessingInfo: req.ProcessingInfo,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(token)
}

// CreateTrigger opens a handoff slot for a cash device without scanning
// capability.
func (h *CashHandler) CreateTrigger(c *fiber.Ctx) error {
	deviceUUID, err := uuid.Parse(c.Query("device_uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
	}

	ttl := 0
	if v := c.Query("expiresIn"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ttl = n
		}
	}

	customerID := middleware.GetCustomerID(c)
	code, err := h.triggers.Create(c.Context(), customerID, deviceUUID, ttl)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.TriggerResponse{TriggerCode: code})
}

// WaitTrigger long-polls until a mobile device fulfills the trigger or its
// TTL runs out. The wait is bounded by the same expiry as the code itself.
func (h *CashHandler) WaitTrigger(c *fiber.Ctx) error {
	code := c.Params("triggercode")

	delivered := make(chan *models.Token, 1)
	expires, err := h.triggers.Register(c.Context(), code, func(token *models.Token) {
		delivered <- token
	})
	if err != nil {
		return fail(c, err)
	}

	timer := time.NewTimer(time.Until(expires))
	defer timer.Stop()

	select {
	case token := <-delivered:
		return c.JSON(token)
	case <-timer.C:
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trigger expired"})
	case <-c.Context().Done():
		return nil
	}
}
