// handlers/progression_routes.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"pvp-battle-server/middleware"
	"pvp-battle-server/services"
)

// SetupProgressionRoutes exposes PvP standings behind the service token.
func SetupProgressionRoutes(app *fiber.App, progressionService *services.ProgressionService, serviceToken string) {
	players := app.Group("/players", middleware.ServiceTokenMiddleware(serviceToken))

	players.Get("/:id/record", func(c *fiber.Ctx) error {
		playerID := c.Params("id")
		limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.RecentBattleLimit)))

		record, err := progressionService.GetPlayerRecord(c.UserContext(), playerID, limit)
		if errors.Is(err, services.ErrPlayerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "player not found",
			})
		}
		if err != nil {
			logrus.WithError(err).WithField("player_id", playerID).Error("failed to load pvp record")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load pvp record",
			})
		}
		return c.JSON(record)
	})
}
