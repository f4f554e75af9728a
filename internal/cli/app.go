package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/analysis/fundamental"
	"github.com/Alias1177/SignalBot/internal/analysis/technical"
	"github.com/Alias1177/SignalBot/internal/api/bybit"
	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/internal/category"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/database"
	"github.com/Alias1177/SignalBot/internal/distribution"
	"github.com/Alias1177/SignalBot/internal/engine"
	"github.com/Alias1177/SignalBot/internal/notification"
	"github.com/Alias1177/SignalBot/internal/signal"
	"github.com/Alias1177/SignalBot/models"
)

// Store is a subscription and tracking store that may hold resources
type Store interface {
	models.SubscriptionStore
	models.TrackingStore
	io.Closer
}

type fileStore struct{ *database.FileStore }

func (fileStore) Close() error { return nil }

// SetupLogger configures the global zerolog logger
func SetupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

// OpenStore opens the configured subscription backend
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		params := database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		log.Info().Str("host", params.Host).Int("port", params.Port).Str("db", params.DBName).Msg("Connecting to Postgres")
		db, err := database.New(ctx, params.DSN())
		if err != nil {
			return nil, err
		}
		return db, nil
	case "file", "":
		fs, err := database.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return fileStore{fs}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// OpenCooldowns returns the Redis cooldown store when REDIS_ADDR is set and
// reachable, otherwise an in-memory one.
func OpenCooldowns(ctx context.Context, cfg *config.Config) distribution.CooldownStore {
	if cfg.RedisAddr == "" {
		return distribution.NewMemoryCooldown()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, keeping cooldowns in memory")
		_ = client.Close()
		return distribution.NewMemoryCooldown()
	}
	return distribution.NewRedisCooldown(client)
}

// NewBotAPI authorises the Telegram bot
func NewBotAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN not set in environment")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("initialising telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")
	return api, nil
}

// NewMarketClient builds the Bybit client from config
func NewMarketClient(cfg *config.Config) *bybit.Client {
	return bybit.NewClient(bybit.ClientOptions{
		BaseURL:        cfg.BybitBaseURL,
		APIKey:         cfg.BybitAPIKey,
		APISecret:      cfg.BybitAPISecret,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: int(cfg.RequestsPerSec),
	})
}

// analysisDeps wires the analyzers and synthesizer shared by run and analyze
func analysisDeps(cfg *config.Config, market *bybit.Client) engine.Deps {
	classifier := category.NewClassifier(cfg.Tables)
	calc := calculate.New(cfg.UseIndicatorLibrary())
	deps := engine.Deps{
		Market:      market,
		Technical:   technical.NewAnalyzer(calc, cfg.Tables.Indicators()),
		Fundamental: fundamental.NewAnalyzer(classifier),
		Synthesizer: signal.NewSynthesizer(cfg.Tables, classifier, calc),
		Calculator:  calc,
	}
	if cfg.BybitAPIKey != "" {
		deps.Balance = market
	}
	return deps
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Symbols:          cfg.Symbols,
		Timeframe:        cfg.PrimaryTimeframe,
		CandleLimit:      cfg.CandleLimit,
		AnalysisInterval: cfg.AnalysisInterval,
		CycleInterval:    cfg.CycleInterval,
	}
}

// notifyAdmins sends text to every configured admin chat, logging failures
func notifyAdmins(ctx context.Context, deliverer models.Deliverer, admins []int64, text string) {
	for _, id := range admins {
		for _, chunk := range notification.Split(text, notification.MaxMessageLength) {
			if err := deliverer.Send(ctx, id, chunk); err != nil {
				log.Error().Err(err).Int64("chat_id", id).Msg("Failed to notify admin")
				break
			}
		}
	}
}
