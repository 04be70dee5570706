// middleware/auth.go
package middleware

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WebSocketUpgradeMiddleware lets only upgrade requests through to the
// socket handler. Identity is established later by the login event, so
// nothing here is trusted beyond the request metadata it records.
func WebSocketUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			logrus.WithField("ip", c.IP()).Debug("[WS] rejected non-upgrade request")
			return fiber.ErrUpgradeRequired
		}

		c.Locals("remote_ip", c.IP())
		c.Locals("user_agent", c.Get(fiber.HeaderUserAgent))
		return c.Next()
	}
}
