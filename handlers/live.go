// handlers/live.go - Websocket endpoint for party live updates
package handlers

import (
	"huntparty/live"
	"huntparty/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// LiveSocket upgrades an authenticated request into a live session. Run
// middleware.WebSocketAuthMiddleware in front of it.
func LiveSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userId").(uint)
		if !ok || userID == 0 {
			logger.Warn("live socket opened without a user")
			_ = conn.Close()
			return
		}
		live.Serve(hub, conn, userID, appStore, liveOptions)
	})
}
