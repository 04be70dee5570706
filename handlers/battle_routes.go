// handlers/battle_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pvp-battle-server/middleware"
	"pvp-battle-server/services"
)

// SetupBattleRoutes mounts health, metrics and the read-only battle admin API.
func SetupBattleRoutes(app *fiber.App, coordinator *services.Coordinator, gatherer prometheus.Gatherer, serviceToken string) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"queue":  coordinator.QueueLen(),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 🔐 Service token required
	guard := middleware.ServiceTokenMiddleware(serviceToken)

	app.Get("/battles", guard, func(c *fiber.Ctx) error {
		battles := coordinator.ActiveBattles()
		return c.JSON(fiber.Map{
			"battles": battles,
			"count":   len(battles),
		})
	})

	app.Get("/battles/:id", guard, func(c *fiber.Ctx) error {
		snap, ok := coordinator.BattleSnapshot(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "battle not found",
			})
		}
		return c.JSON(snap)
	})

	app.Get("/queue", guard, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"waiting": coordinator.QueueLen(),
		})
	})
}
