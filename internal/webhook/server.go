// Package webhook принимает обновления Telegram по HTTP.
package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/ivanoskov/exchange_bot/internal/bot"
)

// UpdateHandler обрабатывает тело одного обновления
type UpdateHandler interface {
	HandleWebhook(ctx context.Context, body []byte) error
}

// NewServer создает fiber-приложение с маршрутом обновлений и проверкой здоровья.
// Ошибки обработки только логируются: ответ не 2xx заставит Telegram
// повторять то же обновление.
func NewServer(handler UpdateHandler, path string, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post(path, func(c *fiber.Ctx) error {
		err := handler.HandleWebhook(c.UserContext(), c.Body())
		switch {
		case errors.Is(err, bot.ErrBadUpdate):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid update"})
		case err != nil:
			logger.Error("Webhook update failed", "error", err)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	return app
}
