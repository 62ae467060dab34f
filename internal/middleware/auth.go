package middleware

import (
	"strings"

	"github.com/cashtoken-io/backend/internal/auth"
	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	CtxCustomerID = "customer_id"

	HeaderAPIKey    = "DN-API-KEY"
	HeaderAPISecret = "DN-API-SECRET"
)

// APIKeyAuth guards one of the machine-facing API groups. The credential pair
// travels in headers; the key's scope must match the group.
func APIKeyAuth(access *repositories.AccessRepo, scope string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderAPIKey)
		secret := c.Get(HeaderAPISecret)
		if key == "" || secret == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing API credentials"})
		}

		a, err := access.FindByKey(c.Context(), key)
		if err != nil || a.Scope != scope {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API credentials"})
		}
		if bcrypt.CompareHashAndPassword([]byte(a.APISecretHash), []byte(secret)) != nil {
			log.Debug("api secret mismatch", zap.String("apikey", key))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API credentials"})
		}

		c.Locals(CtxCustomerID, a.CustomerID)
		return c.Next()
	}
}

// JWTAuth guards the admin surface with the session token from the login
// endpoint.
func JWTAuth(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxCustomerID, claims.CustomerID)
		return c.Next()
	}
}

func GetCustomerID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(CtxCustomerID).(int64)
	return id
}
