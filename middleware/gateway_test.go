package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardedApp(token string) *fiber.App {
	app := fiber.New()
	app.Get("/battles", ServiceTokenMiddleware(token), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/ws", WebSocketUpgradeMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusSwitchingProtocols)
	})
	return app
}

func TestServiceTokenMiddleware(t *testing.T) {
	app := guardedApp("secret")

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer secret", fiber.StatusOK},
		{"raw header", "X-Service-Token", "secret", fiber.StatusOK},
		{"wrong", "Authorization", "Bearer nope", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/battles", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestServiceTokenMiddlewareDisabled(t *testing.T) {
	app := guardedApp("")

	req := httptest.NewRequest("GET", "/battles", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocketUpgradeMiddlewareRejectsPlainRequests(t *testing.T) {
	app := guardedApp("secret")

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
