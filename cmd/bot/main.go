package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivanoskov/exchange_bot/internal/app"
	"github.com/ivanoskov/exchange_bot/internal/config"
)

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

	logger.Info("Bot started in long polling mode")
	if err := a.Bot.Start(ctx); err != nil {
		logger.Error("Bot stopped with error", "error", err)
		return
	}
	logger.Info("Bot stopped")
}
