// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ServiceTokenMiddleware guards the admin API with GAME_SERVICE_TOKEN. With
// no token configured the guarded routes answer 503.
func ServiceTokenMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		logrus.Warn("[GATEWAY_AUTH] GAME_SERVICE_TOKEN is not set, admin routes disabled")
	}

	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "admin API disabled",
			})
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			authHeader = c.Get("X-Service-Token")
		}
		if authHeader == "" {
			logrus.WithField("path", c.Path()).Info("[GATEWAY_AUTH] missing service token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "service authentication token missing",
			})
		}

		// "Bearer <token>" or the raw token
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			logrus.WithField("path", c.Path()).Warn("[GATEWAY_AUTH] invalid service token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service authentication token",
			})
		}

		return c.Next()
	}
}
