package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanoskov/exchange_bot/internal/app"
	"github.com/ivanoskov/exchange_bot/internal/config"
	"github.com/ivanoskov/exchange_bot/internal/webhook"
)

// Точка входа для режима webhook: Telegram присылает обновления по HTTP
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start bot", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := webhook.NewServer(a.Bot, cfg.WebhookPath, logger)
	go func() {
		logger.Info("Webhook server starting", "addr", cfg.WebhookAddr, "path", cfg.WebhookPath)
		if err := server.Listen(cfg.WebhookAddr); err != nil {
			logger.Error("Webhook server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down webhook server")
	if err := server.Shutdown(); err != nil {
		logger.Error("Webhook server shutdown failed", "error", err)
	}
}
