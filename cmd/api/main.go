package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cashtoken-io/backend/internal/config"
	"github.com/cashtoken-io/backend/internal/db"
	"github.com/cashtoken-io/backend/internal/events"
	apphttp "github.com/cashtoken-io/backend/internal/http"
	"github.com/cashtoken-io/backend/internal/http/handlers"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBPoolSize, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis is optional; without it the process runs single-node with
	// in-memory triggers and local notification fan-out.
	var rdb *redis.Client
	var bus events.Bus
	if cfg.UseRedis {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		redisBus := events.NewRedisBus(rdb, log)
		defer redisBus.Close()
		bus = redisBus
	}

	var mqttPub *events.MQTTPublisher
	if cfg.UseMQTT {
		mqttPub, err = events.NewMQTTPublisher(cfg.MQTTURL, cfg.MQTTUser, cfg.MQTTPassword, log)
		if err != nil {
			log.Fatal("failed to connect to mqtt broker", zap.Error(err))
		}
		defer mqttPub.Close()
	}

	notifier := notify.New(log)
	if bus != nil {
		notifier = notify.NewClustered(bus, log)
	}

	// Repositories
	tokenRepo := repositories.NewTokenRepo(pool)
	deviceRepo := repositories.NewDeviceRepo(pool)
	clearingRepo := repositories.NewClearingRepo(pool)
	paramRepo := repositories.NewParamRepo(pool)
	accessRepo := repositories.NewAccessRepo(pool)
	customerRepo := repositories.NewCustomerRepo(pool)

	// Services
	clearingService := services.NewClearingService(clearingRepo, paramRepo, notifier, log)
	tokenService := services.NewTokenService(tokenRepo, deviceRepo, clearingService, notifier, cfg, log)
	triggerService := services.NewTriggerService(tokenService, deviceRepo, paramRepo, rdb, bus, mqttPub, cfg, log)
	deviceService := services.NewDeviceService(deviceRepo, log)

	if err := triggerService.Start(ctx); err != nil {
		log.Fatal("failed to subscribe trigger broadcast", zap.Error(err))
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(customerRepo, cfg, log)
	tokenHandler := handlers.NewTokenHandler(tokenService, log)
	cashHandler := handlers.NewCashHandler(tokenService, triggerService, log)
	mobileHandler := handlers.NewMobileHandler(triggerService, log)
	clearingHandler := handlers.NewClearingHandler(clearingService, log)
	deviceHandler := handlers.NewDeviceHandler(deviceService, log)
	wsHub := handlers.NewWSHub(accessRepo, notifier, log)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, accessRepo,
		authHandler, tokenHandler, cashHandler, mobileHandler, clearingHandler, deviceHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
