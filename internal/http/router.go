package http

import (
	"time"

	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/http/handlers"
	"github.com/cashtoken-io/backend/internal/middleware"
	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	access *repositories.AccessRepo,
	authHandler *handlers.AuthHandler,
	tokenHandler *handlers.TokenHandler,
	cashHandler *handlers.CashHandler,
	mobileHandler *handlers.MobileHandler,
	clearingHandler *handlers.ClearingHandler,
	deviceHandler *handlers.DeviceHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, " +
			middleware.HeaderAPIKey + ", " + middleware.HeaderAPISecret,
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/dnapi")

	// Token API: the token-owning party issues and manages tokens
	tokenAPI := api.Group("/token/v1", middleware.APIKeyAuth(access, models.ScopeTokenAPI, log))
	tokenAPI.Post("/tokens", tokenHandler.Create)
	tokenAPI.Get("/tokens", tokenHandler.List)
	tokenAPI.Get("/tokens/:uuid", tokenHandler.Get)
	tokenAPI.Put("/tokens/:uuid", tokenHandler.Update)
	tokenAPI.Delete("/tokens/:uuid", tokenHandler.Delete)
	tokenAPI.Post("/devices", deviceHandler.Register)
	tokenAPI.Get("/devices", deviceHandler.List)
	tokenAPI.Delete("/devices/:uuid", deviceHandler.Delete)

	// Cash API: cash devices claim, settle and wait on triggers
	cashAPI := api.Group("/cash/v1", middleware.APIKeyAuth(access, models.ScopeCashAPI, log))
	cashAPI.Get("/tokens/:radiocode", cashHandler.VerifyAndLock)
	cashAPI.Put("/tokens/:uuid", cashHandler.Confirm)
	cashAPI.Post("/trigger", cashHandler.CreateTrigger)
	cashAPI.Get("/trigger/:triggercode", cashHandler.WaitTrigger)
	cashAPI.Post("/devices", deviceHandler.Register)
	cashAPI.Get("/devices", deviceHandler.List)
	cashAPI.Delete("/devices/:uuid", deviceHandler.Delete)

	// Mobile API: unauthenticated, rate limited
	mobileAPI := api.Group("/mobile/v1", middleware.RateLimitMiddleware(rdb, 60, time.Minute))
	mobileAPI.Post("/trigger/:triggercode", mobileHandler.NotifyTrigger)

	// Clearing API
	clearingAPI := api.Group("/clearing/v1", middleware.APIKeyAuth(access, models.ScopeClearingAPI, log))
	clearingAPI.Get("/clearing", clearingHandler.List)

	// Admin API: session login plus read access for the UI
	adminAPI := api.Group("/admin/v1")
	adminAPI.Post("/auth", middleware.RateLimitMiddleware(rdb, 10, time.Minute), authHandler.Login)
	adminProtected := adminAPI.Group("", middleware.JWTAuth(cfg, log))
	adminProtected.Get("/tokens", tokenHandler.List)
	adminProtected.Get("/tokens/:uuid", tokenHandler.Get)
	adminProtected.Get("/devices", deviceHandler.List)
	adminProtected.Get("/clearing", clearingHandler.List)

	// WebSocket change feeds, authenticated by listen key in the path
	app.Use("/dnapi/tokenws", handlers.WSUpgradeMiddleware())
	app.Get("/dnapi/tokenws/:listenkey", websocket.New(wsHub.HandleTokenWS))
	app.Use("/dnapi/clearingws", handlers.WSUpgradeMiddleware())
	app.Get("/dnapi/clearingws/:listenkey", websocket.New(wsHub.HandleClearingWS))
}
