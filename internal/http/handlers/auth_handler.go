package handlers

import (
	"github.com/cashtoken-io/backend/internal/auth"
	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/http/dto"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	customers *repositories.CustomerRepo
	cfg       *config.Config
	log       *zap.Logger
}

func NewAuthHandler(customers *repositories.CustomerRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{customers: customers, cfg: cfg, log: log}
}

// Login exchanges email and password for the admin session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "email and password required"})
	}

	customer, err := h.customers.FindByEmail(c.Context(), req.Email)
	if err != nil {
		h.log.Debug("login for unknown email", zap.String("email", req.Email))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid credentials"})
	}
	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid credentials"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, customer.ID, customer.Email, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.LoginResponse{Token: token})
}
