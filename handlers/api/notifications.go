package api

import (
	"time"

	"bulkmail/auth"
	"bulkmail/middleware"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Notification is pushed to every open tab of a browser
type Notification struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"` // "session"
	Authenticated bool      `json:"authenticated"`
	Time          time.Time `json:"time"`
}

// NotificationHandler streams session changes to the browser's tabs over a
// websocket, so a logout in one tab is reflected in all of them
type NotificationHandler struct {
	registry *auth.Registry
	interval time.Duration
}

// NewNotificationHandler creates a new notification handler. interval is the
// keep-alive period, at which the session is also re-synced with storage.
func NewNotificationHandler(registry *auth.Registry, interval time.Duration) *NotificationHandler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &NotificationHandler{registry: registry, interval: interval}
}

// Upgrade accepts only websocket upgrades from identified browsers
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	b := middleware.CurrentBrowser(c)
	if b == nil {
		return utils.UnauthorizedError("Unknown browser", nil)
	}
	c.Locals("device", b.DeviceID)
	return c.Next()
}

// HandleWebSocket pushes a notification on every session change
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	deviceID, _ := c.Locals("device").(string)
	subscriberID := uuid.New().String()

	store := h.registry.Session(deviceID)
	events, unsubscribe := store.Subscribe()

	// the reader only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		c.Close()
		utils.Log.Debug("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Debug("WebSocket subscriber connected: %s", subscriberID)

	if err := c.WriteJSON(newNotification(store.IsAuthenticated())); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(newNotification(event.Authenticated)); err != nil {
				utils.Log.Warn("Failed to send WebSocket notification: %v", err)
				return
			}
		case <-ticker.C:
			// the registry may have rebuilt the store after an idle period
			if current := h.registry.Session(deviceID); current != store {
				unsubscribe()
				store = current
				events, unsubscribe = store.Subscribe()
			}
			store.Sync()
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func newNotification(authenticated bool) Notification {
	return Notification{
		ID:            uuid.New().String(),
		Type:          "session",
		Authenticated: authenticated,
		Time:          time.Now(),
	}
}
