package handlers

import (
	"github.com/cashtoken-io/backend/internal/middleware"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ClearingHandler struct {
	clearing *services.ClearingService
	log      *zap.Logger
}

func NewClearingHandler(clearing *services.ClearingService, log *zap.Logger) *ClearingHandler {
	return &ClearingHandler{clearing: clearing, log: log}
}

func (h *ClearingHandler) List(c *fiber.Ctx) error {
	rows, err := h.clearing.List(c.Context(), middleware.GetCustomerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}
