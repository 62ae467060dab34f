package handlers

import (
	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MobileHandler is the unauthenticated surface the token-holding app calls.
// It carries no credentials; possession of a live trigger code and a valid
// radio code is the whole proof.
type MobileHandler struct {
	triggers *services.TriggerService
	log      *zap.Logger
}

func NewMobileHandler(triggers *services.TriggerService, log *zap.Logger) *MobileHandler {
	return &MobileHandler{triggers: triggers, log: log}
}

func (h *MobileHandler) NotifyTrigger(c *fiber.Ctx) error {
	var req dto.NotifyTriggerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.RadioCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "radiocode required"})
	}

	if err := h.triggers.Notify(c.Context(), c.Params("triggercode"), req.RadioCode, req.Signature); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
