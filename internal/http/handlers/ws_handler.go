package handlers

import (
	"context"

	"github.com/cashtoken-io/backend/internal/models"
	"github.com/cashtoken-io/backend/internal/notify"
	"github.com/cashtoken-io/backend/internal/repositories"
	"github.com/cashtoken-io/backend/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub bridges websocket connections into the change notifier. A connection
// authenticates with an API key in the path, picks up the key's customer, and
// observes that customer's token or clearing scope until it disconnects.
type WSHub struct {
	access   *repositories.AccessRepo
	notifier *notify.Notifier
	log      *zap.Logger
}

func NewWSHub(access *repositories.AccessRepo, notifier *notify.Notifier, log *zap.Logger) *WSHub {
	return &WSHub{access: access, notifier: notifier, log: log}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleTokenWS streams token change events for the key's customer.
func (h *WSHub) HandleTokenWS(conn *websocket.Conn) {
	h.serve(conn, models.ScopeTokenAPI, services.TokenScope)
}

// HandleClearingWS streams clearing change events for the key's customer.
func (h *WSHub) HandleClearingWS(conn *websocket.Conn) {
	h.serve(conn, models.ScopeClearingAPI, services.ClearingScope)
}

func (h *WSHub) serve(conn *websocket.Conn, requiredScope string, scopeFor func(int64) string) {
	defer conn.Close()

	key := conn.Params("listenkey")
	access, err := h.access.FindByKey(context.Background(), key)
	if err != nil || access.Scope != requiredScope {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid listen key"}`))
		return
	}

	scope := scopeFor(access.CustomerID)
	observerID := uuid.NewString()

	h.notifier.AddObserver(context.Background(), scope, observerID, func(payload []byte) error {
		return conn.WriteMessage(websocket.TextMessage, payload)
	})
	defer h.notifier.RemoveObserver(context.Background(), scope, observerID)

	h.log.Debug("ws observer attached", zap.String("scope", scope), zap.String("id", observerID))

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
