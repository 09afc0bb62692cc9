// Package app собирает зависимости бота по конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/exchange_bot/internal/bot"
	"github.com/ivanoskov/exchange_bot/internal/config"
	"github.com/ivanoskov/exchange_bot/internal/events"
	"github.com/ivanoskov/exchange_bot/internal/matching"
	"github.com/ivanoskov/exchange_bot/internal/rates"
	"github.com/ivanoskov/exchange_bot/internal/repository"
	"github.com/ivanoskov/exchange_bot/internal/service"
	"github.com/ivanoskov/exchange_bot/internal/session"
	"github.com/ivanoskov/exchange_bot/internal/wizard"
)

// App - собранный бот и ресурсы, которые нужно освободить при остановке
type App struct {
	Bot     *bot.Bot
	closers []func()
}

// New подключается к Telegram и хранилищу и связывает компоненты
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	repo, err := a.openRepository(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on Telegram", "account", api.Self.UserName)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.onClose(func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close event publisher", "error", err)
			}
		})
		logger.Info("Publishing request events to Kafka", "topic", cfg.KafkaTopic)
	}

	store, err := session.NewMemoryStore(cfg.SessionCapacity, cfg.SessionTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	a.onClose(store.Close)

	requests := service.NewRequests(repo, bot.NewTelegramGateway(api, cfg.GroupID), publisher, logger)
	engine := wizard.NewEngine(store, matching.NewFinder(repo), requests, requests, logger)

	a.Bot = bot.NewBot(api, requests, engine, rates.NewClient(cfg.RatesURL, cfg.RatesTimeout), logger, bot.Options{
		GroupID:            cfg.GroupID,
		AdminID:            cfg.AdminID,
		DashboardMessageID: cfg.DashboardMessageID,
	})
	return a, nil
}

// openRepository выбирает хранилище: Postgres, Supabase или память
func (a *App) openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Repository, error) {
	switch {
	case cfg.DatabaseURL != "":
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := repository.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.onClose(pool.Close)
		logger.Info("Using Postgres storage")
		return repository.NewPostgresRepository(pool), nil

	case cfg.SupabaseURL != "":
		if cfg.SupabaseKey == "" {
			return nil, errors.New("SUPABASE_KEY is required with SUPABASE_URL")
		}
		repo, err := repository.NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		logger.Info("Using Supabase storage")
		return repo, nil
	}

	logger.Warn("No database configured, requests are kept in memory only")
	return repository.NewMemoryRepository(), nil
}

func (a *App) onClose(f func()) {
	a.closers = append(a.closers, f)
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
