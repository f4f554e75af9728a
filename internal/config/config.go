package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	BybitBaseURL   string
	BybitAPIKey    string
	BybitAPISecret string
	RequestsPerSec float64
	RequestTimeout int // seconds

	TelegramToken string
	AdminChatIDs  []int64

	StoreBackend string // postgres | file
	StorePath    string
	Database     DatabaseConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Stripe StripeConfig

	Symbols          []string
	PrimaryTimeframe string
	CandleLimit      int
	AnalysisInterval time.Duration
	CycleInterval    time.Duration
	TrackingInterval time.Duration
	TrackingMaxAge   time.Duration
	IndicatorLibrary string // talib | native

	MetricsAddr string
	LogLevel    string
	TestMode    bool
	TablesFile  string

	Tables *Tables
}

// DatabaseConfig holds Postgres connection parameters
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StripeConfig holds payment settings
type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	WebhookAddr    string
	SuccessURL     string
	CancelURL      string
	BasicPriceID   string
	PremiumPriceID string
	VIPPriceID     string
}

var defaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "LINKUSDT", "AAVEUSDT",
	"AVAXUSDT", "DOTUSDT", "DOGEUSDT", "SANDUSDT", "INJUSDT",
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.BybitBaseURL = getEnvWithDefault("BYBIT_BASE_URL", "https://api.bybit.com")
	cfg.BybitAPIKey = os.Getenv("BYBIT_API_KEY")
	cfg.BybitAPISecret = os.Getenv("BYBIT_API_SECRET")
	cfg.RequestsPerSec = getEnvFloatWithDefault("REQUESTS_PER_SEC", 10)
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	ids, err := parseChatIDs(os.Getenv("ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("parsing ADMIN_CHAT_IDS: %w", err)
	}
	cfg.AdminChatIDs = ids

	cfg.StoreBackend = getEnvWithDefault("STORE_BACKEND", "file")
	cfg.StorePath = getEnvWithDefault("STORE_PATH", "data")
	cfg.Database = DatabaseConfig{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvIntWithDefault("DB_PORT", 5432),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "signalbot"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)

	cfg.Stripe = StripeConfig{
		SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		WebhookAddr:    getEnvWithDefault("STRIPE_WEBHOOK_ADDR", ":8080"),
		SuccessURL:     getEnvWithDefault("STRIPE_SUCCESS_URL", "https://t.me"),
		CancelURL:      getEnvWithDefault("STRIPE_CANCEL_URL", "https://t.me"),
		BasicPriceID:   os.Getenv("STRIPE_PRICE_BASIC"),
		PremiumPriceID: os.Getenv("STRIPE_PRICE_PREMIUM"),
		VIPPriceID:     os.Getenv("STRIPE_PRICE_VIP"),
	}

	cfg.Symbols = getEnvListWithDefault("SYMBOLS", defaultSymbols)
	cfg.PrimaryTimeframe = getEnvWithDefault("PRIMARY_TIMEFRAME", "4h")
	cfg.CandleLimit = getEnvIntWithDefault("CANDLE_LIMIT", 200)
	cfg.AnalysisInterval = getEnvDurationWithDefault("ANALYSIS_INTERVAL", 15*time.Minute)
	cfg.CycleInterval = getEnvDurationWithDefault("CYCLE_INTERVAL", 5*time.Minute)
	cfg.TrackingInterval = getEnvDurationWithDefault("TRACKING_INTERVAL", time.Minute)
	cfg.TrackingMaxAge = getEnvDurationWithDefault("TRACKING_MAX_AGE", 72*time.Hour)
	cfg.IndicatorLibrary = getEnvWithDefault("INDICATOR_LIBRARY", "talib")

	cfg.MetricsAddr = getEnvWithDefault("METRICS_ADDR", ":9090")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.TestMode = getEnvBoolWithDefault("TEST_MODE", false)
	cfg.TablesFile = os.Getenv("TABLES_FILE")

	spec, err := LoadTablesSpec(cfg.TablesFile)
	if err != nil {
		return nil, err
	}
	applyRiskEnv(&spec.Risk)

	tables, err := NewTables(spec, cfg.TestMode)
	if err != nil {
		return nil, err
	}
	cfg.Tables = tables

	return &cfg, nil
}

// applyRiskEnv lets the environment override the global risk knobs of the tables
func applyRiskEnv(r *RiskSettings) {
	r.AccountBalance = getEnvFloatWithDefault("ACCOUNT_BALANCE", r.AccountBalance)
	r.MaxRiskPerTrade = getEnvFloatWithDefault("MAX_RISK_PER_TRADE", r.MaxRiskPerTrade)
	r.MaxLeverage = getEnvIntWithDefault("MAX_LEVERAGE", r.MaxLeverage)
	r.MinConfidence = getEnvFloatWithDefault("MIN_CONFIDENCE", r.MinConfidence)
	r.MinVolumeUSDT = getEnvFloatWithDefault("MIN_VOLUME_USDT", r.MinVolumeUSDT)
	r.OtherCategoryMinTier = getEnvWithDefault("OTHER_CATEGORY_MIN_TIER", r.OtherCategoryMinTier)
}

// IsAdmin reports whether chatID is listed in ADMIN_CHAT_IDS
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// UseIndicatorLibrary reports whether indicator series come from go-talib
func (c *Config) UseIndicatorLibrary() bool {
	return !strings.EqualFold(c.IndicatorLibrary, "native")
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
