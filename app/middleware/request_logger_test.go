package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/app/api"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	app.Use(RequestLogger(logger))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/bad", func(c *fiber.Ctx) error { return api.ErrBadRequest() })
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return api.NewValidationError(map[string]string{"Question": "required"})
	})
	app.Get("/gone", func(c *fiber.Ctx) error { return fiber.ErrGone })

	tests := []struct {
		path   string
		status int
		log    string
	}{
		{"/ok", http.StatusOK, "level=INFO msg=request method=GET path=/ok status=200"},
		{"/bad", http.StatusBadRequest, "level=WARN msg=request method=GET path=/bad status=400"},
		{"/invalid", http.StatusUnprocessableEntity, "level=WARN msg=request method=GET path=/invalid status=422"},
		{"/gone", http.StatusGone, "path=/gone status=410"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, buf.String(), tt.log)
		})
	}
}
