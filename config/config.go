// Package config loads application configuration from an optional JSON
// file with environment variable overrides. Env vars take precedence so
// containerized deployments never need the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	MarketConfig       MarketConfig       `json:"market"`
	ScannerConfig      ScannerConfig      `json:"scanner"`
	BacktestConfig     BacktestConfig     `json:"backtest"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

type ServerConfig struct {
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type MarketConfig struct {
	BaseURL        string `json:"base_url"`
	FuturesBaseURL string `json:"futures_base_url"`
	MockMode       bool   `json:"mock_mode"` // Use simulated data instead of the live exchange
}

type ScannerConfig struct {
	Enabled         bool   `json:"enabled"`
	CronSchedule    string `json:"cron_schedule"` // robfig/cron spec, e.g. "@every 4h"
	WorkerCount     int    `json:"worker_count"`
	CandleLimit     int    `json:"candle_limit"`
	TopAssets       int    `json:"top_assets"`
	QuoteCurrency   string `json:"quote_currency"`
	ReferenceSymbol string `json:"reference_symbol"`
	RegimeTimeframe string `json:"regime_timeframe"`
	SetupTTLHours   int    `json:"setup_ttl_hours"`
	FetchTimeoutSec int    `json:"fetch_timeout_sec"`
	ScanTimeoutMin  int    `json:"scan_timeout_min"`
}

type BacktestConfig struct {
	Horizon     int     `json:"horizon"`
	CandleLimit int     `json:"candle_limit"`
	FeeBps      float64 `json:"fee_bps"`
	SlippageBps float64 `json:"slippage_bps"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // Human-readable console output instead of JSON
}

// Load reads config.json if present and applies env overrides on top.
// A .env file in the working directory is honored for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaults()
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Port:         8080,
			AllowOrigins: []string{"*"},
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "scanner",
			Password: "scanner",
			Database: "scanner",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		ScannerConfig: ScannerConfig{
			Enabled:         true,
			CronSchedule:    "@every 4h",
			WorkerCount:     4,
			CandleLimit:     300,
			TopAssets:       100,
			QuoteCurrency:   "USDT",
			ReferenceSymbol: "BTC/USDT",
			RegimeTimeframe: "4h",
			SetupTTLHours:   48,
			FetchTimeoutSec: 15,
			ScanTimeoutMin:  20,
		},
		BacktestConfig: BacktestConfig{
			Horizon:     10,
			CandleLimit: 500,
		},
		LoggingConfig: LoggingConfig{
			Level: "info",
		},
	}
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Port = getEnvInt("PORT", cfg.ServerConfig.Port)

	cfg.DatabaseConfig.Host = getEnv("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvInt("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnv("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnv("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnv("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnv("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvBool("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Addr = getEnv("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnv("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvInt("REDIS_DB", cfg.RedisConfig.DB)

	cfg.MarketConfig.BaseURL = getEnv("MARKET_BASE_URL", cfg.MarketConfig.BaseURL)
	cfg.MarketConfig.FuturesBaseURL = getEnv("MARKET_FUTURES_BASE_URL", cfg.MarketConfig.FuturesBaseURL)
	cfg.MarketConfig.MockMode = getEnvBool("MOCK_MODE", cfg.MarketConfig.MockMode)

	cfg.ScannerConfig.Enabled = getEnvBool("SCANNER_ENABLED", cfg.ScannerConfig.Enabled)
	cfg.ScannerConfig.CronSchedule = getEnv("SCANNER_CRON", cfg.ScannerConfig.CronSchedule)
	cfg.ScannerConfig.WorkerCount = getEnvInt("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.TopAssets = getEnvInt("SCANNER_TOP_ASSETS", cfg.ScannerConfig.TopAssets)
	cfg.ScannerConfig.QuoteCurrency = getEnv("SCANNER_QUOTE", cfg.ScannerConfig.QuoteCurrency)
	cfg.ScannerConfig.ReferenceSymbol = getEnv("SCANNER_REFERENCE_SYMBOL", cfg.ScannerConfig.ReferenceSymbol)

	cfg.NotificationConfig.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBool("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)

	cfg.LoggingConfig.Level = getEnv("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvBool("LOG_PRETTY", cfg.LoggingConfig.Pretty)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}
