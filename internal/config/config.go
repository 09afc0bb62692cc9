package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken      string
	GroupID            int64
	AdminID            int64
	DashboardMessageID int

	DatabaseURL string
	SupabaseURL string
	SupabaseKey string

	KafkaBrokers []string
	KafkaTopic   string

	SessionTTL      time.Duration
	SessionCapacity int

	RatesURL     string
	RatesTimeout time.Duration

	WebhookAddr string
	WebhookPath string

	LogLevel slog.Level
}

// LoadConfig читает .env (если есть) и переменные окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SupabaseURL:   getEnv("SUPABASE_URL", ""),
		SupabaseKey:   getEnv("SUPABASE_KEY", ""),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "exchange-requests"),
		RatesURL:      getEnv("RATES_URL", "https://alif.tj/api/rates"),
		WebhookAddr:   getEnv("WEBHOOK_ADDR", ":8080"),
		WebhookPath:   getEnv("WEBHOOK_PATH", "/telegram/webhook"),
	}
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_TOKEN is required")
	}

	var err error
	if cfg.GroupID, err = parseInt64("GROUP_ID", "0"); err != nil {
		return nil, err
	}
	if cfg.AdminID, err = parseInt64("ADMIN_ID", "0"); err != nil {
		return nil, err
	}
	dashboard, err := parseInt64("DASHBOARD_MESSAGE_ID", "0")
	if err != nil {
		return nil, err
	}
	cfg.DashboardMessageID = int(dashboard)

	capacity, err := parseInt64("SESSION_CAPACITY", "10000")
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("SESSION_CAPACITY must be positive, got %d", capacity)
	}
	cfg.SessionCapacity = int(capacity)

	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", "30m"); err != nil {
		return nil, err
	}
	if cfg.RatesTimeout, err = parseDuration("RATES_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseInt64(key, fallback string) (int64, error) {
	raw := getEnv(key, fallback)
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
