package handlers

import (
	"fmt"
	"strconv"

	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/middleware"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenHandler is the token-owning party's surface: issue, list, patch and
// cancel tokens.
type TokenHandler struct {
	tokens *services.TokenService
	log    *zap.Logger
}

func NewTokenHandler(tokens *services.TokenService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: log}
}

func (h *TokenHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	deviceUUID, err := uuid.Parse(req.DeviceUUID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
	}

	customerID := middleware.GetCustomerID(c)
	token, err := h.tokens.Create(c.Context(), customerID, services.CreateTokenRequest{
		DeviceUUID: deviceUUID,
		Type:       req.Type,
		Amount:     req.Amount,
		Symbol:     req.Symbol,
		RefName:    req.RefName,
		Info:       req.Info,
		Expires:    req.Expires,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(token)
}

func (h *TokenHandler) List(c *fiber.Ctx) error {
	customerID := middleware.GetCustomerID(c)

	var filter repositories.TokenFilter
	if v := c.Query("device_uuid"); v != "" {
		uid, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
		}
		filter.DeviceUUID = &uid
	}
	if v := c.Query("state"); v != "" {
		filter.State = &v
	}
	if v := c.Query("clearstate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid clearstate"})
		}
		filter.ClearState = &n
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	tokens, err := h.tokens.List(c.Context(), customerID, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tokens)
}

func (h *TokenHandler) Get(c *fiber.Ctx) error {
	tokenUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token uuid"})
	}

	token, err := h.tokens.Get(c.Context(), middleware.GetCustomerID(c), tokenUUID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(token)
}

func (h *TokenHandler) Update(c *fiber.Ctx) error {
	tokenUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token uuid"})
	}

	var req dto.UpdateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	token, err := h.tokens.UpdateFields(c.Context(), middleware.GetCustomerID(c), tokenUUID, req.ClearState, req.Info)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(token)
}

func (h *TokenHandler) Delete(c *fiber.Ctx) error {
	tokenUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid token uuid"})
	}
	deviceUUID, err := uuid.Parse(c.Query("device_uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device_uuid"})
	}

	customerID := middleware.GetCustomerID(c)
	if err := h.tokens.Delete(c.Context(), customerID, deviceUUID, tokenUUID); err != nil {
		return fail(c, err)
	}
	h.log.Info("token deleted",
		zap.String("uuid", tokenUUID.String()),
		zap.String("customer", fmt.Sprintf("%d", customerID)))
	return c.SendStatus(fiber.StatusNoContent)
}
