package handlers

import (
	"errors"

	"github.com/cashtoken-io/backend/internal/codec"
	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// fail maps the service error taxonomy onto HTTP statuses. Verification
// failures deliberately collapse to one opaque message so a caller cannot
// tell which part of the presented code was wrong.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, services.ErrInvalidCode), errors.Is(err, services.ErrForeignToken):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "invalid code"})
	case errors.Is(err, services.ErrNotOpen), errors.Is(err, services.ErrNotLocked):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrWrongLocker),
		errors.Is(err, services.ErrIllegalAmountIncrease),
		errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	var cerr *codec.CryptoError
	if errors.As(err, &cerr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: cerr.Error()})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
}
