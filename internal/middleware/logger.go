package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LoggerMiddleware logs one line per request. It runs outside the auth
// middleware, so the customer resolved from an API key or session token is
// included once the handler chain returns.
func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		reqID, _ := c.Locals(CtxRequestID).(string)
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if customerID, ok := c.Locals(CtxCustomerID).(int64); ok {
			fields = append(fields, zap.Int64("customer_id", customerID))
		}
		log.Info("request", fields...)

		return err
	}
}
