package handlers

import (
	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/middleware"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	devices *services.DeviceService
	log     *zap.Logger
}

func NewDeviceHandler(devices *services.DeviceService, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, log: log}
}

func (h *DeviceHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	device, err := h.devices.Register(c.Context(), middleware.GetCustomerID(c), services.RegisterDeviceRequest{
		PubKey:  req.PubKey,
		Type:    req.Type,
		RefName: req.RefName,
		Info:    req.Info,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(device)
}

func (h *DeviceHandler) List(c *fiber.Ctx) error {
	devices, err := h.devices.List(c.Context(), middleware.GetCustomerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(devices)
}

func (h *DeviceHandler) Delete(c *fiber.Ctx) error {
	deviceUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid device uuid"})
	}
	if err := h.devices.Delete(c.Context(), middleware.GetCustomerID(c), deviceUUID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
