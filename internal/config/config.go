// Package config loads server settings. Values come from an optional YAML
// file named by CONFIG_FILE, then environment variables override them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"focusflow/backend/internal/timer"
)

type Config struct {
	Port             string
	DBPath           string
	JWTSecret        string
	TokenTTL         time.Duration
	CORSOrigins      []string
	WebSocketOrigins []string
	MigrationsDir    string
	LogLevel         slog.Level
	SessionCookie    string
	SecureCookies    bool
	TickInterval     time.Duration
	Timer            timer.Durations
	ShutdownTimeout  time.Duration
}

type fileConfig struct {
	Port           string          `yaml:"port"`
	DBPath         string          `yaml:"db_path"`
	JWTSecret      string          `yaml:"jwt_secret"`
	TokenTTLHours  int             `yaml:"token_ttl_hours"`
	CORSOrigins    []string        `yaml:"cors_origins"`
	MigrationsDir  string          `yaml:"migrations_dir"`
	LogLevel       string          `yaml:"log_level"`
	SessionCookie  string          `yaml:"session_cookie"`
	SecureCookies  *bool           `yaml:"secure_cookies"`
	TickIntervalMS int             `yaml:"tick_interval_ms"`
	Timer          timer.Durations `yaml:"timer"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		DBPath:          "./data/focusflow.db",
		JWTSecret:       "change-this-secret",
		TokenTTL:        7 * 24 * time.Hour,
		CORSOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		LogLevel:        slog.LevelInfo,
		SessionCookie:   "focusflow_session",
		TickInterval:    time.Second,
		Timer:           timer.DefaultDurations(),
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads CONFIG_FILE (if set) and the environment. Only an unreadable or
// malformed config file is an error; bad env values fall back.
func Load() (Config, error) {
	cfg := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = time.Duration(getEnvInt("TOKEN_TTL_HOURS", int(cfg.TokenTTL/time.Hour))) * time.Hour
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.LogLevel = parseLevel(getEnv("LOG_LEVEL", ""), cfg.LogLevel)
	cfg.SessionCookie = getEnv("SESSION_COOKIE", cfg.SessionCookie)
	cfg.SecureCookies = getEnvBool("SECURE_COOKIES", cfg.SecureCookies)
	cfg.TickInterval = time.Duration(getEnvInt("TICK_INTERVAL_MS", int(cfg.TickInterval/time.Millisecond))) * time.Millisecond
	cfg.Timer.Work = getEnvInt("WORK_DURATION_SECONDS", cfg.Timer.Work)
	cfg.Timer.ShortBreak = getEnvInt("SHORT_BREAK_DURATION_SECONDS", cfg.Timer.ShortBreak)
	cfg.Timer.LongBreak = getEnvInt("LONG_BREAK_DURATION_SECONDS", cfg.Timer.LongBreak)
	cfg.Timer.SessionsBeforeLongBreak = getEnvInt("SESSIONS_BEFORE_LONG_BREAK", cfg.Timer.SessionsBeforeLongBreak)
	cfg.WebSocketOrigins = getEnvList("WS_ORIGINS", cfg.CORSOrigins)

	cfg.Timer = cfg.Timer.Normalized()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults().TokenTTL
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if file.Port != "" {
		cfg.Port = file.Port
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	if file.JWTSecret != "" {
		cfg.JWTSecret = file.JWTSecret
	}
	if file.TokenTTLHours > 0 {
		cfg.TokenTTL = time.Duration(file.TokenTTLHours) * time.Hour
	}
	if len(file.CORSOrigins) > 0 {
		cfg.CORSOrigins = file.CORSOrigins
	}
	if file.MigrationsDir != "" {
		cfg.MigrationsDir = file.MigrationsDir
	}
	cfg.LogLevel = parseLevel(file.LogLevel, cfg.LogLevel)
	if file.SessionCookie != "" {
		cfg.SessionCookie = file.SessionCookie
	}
	if file.SecureCookies != nil {
		cfg.SecureCookies = *file.SecureCookies
	}
	if file.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(file.TickIntervalMS) * time.Millisecond
	}
	if file.Timer.Work > 0 {
		cfg.Timer.Work = file.Timer.Work
	}
	if file.Timer.ShortBreak > 0 {
		cfg.Timer.ShortBreak = file.Timer.ShortBreak
	}
	if file.Timer.LongBreak > 0 {
		cfg.Timer.LongBreak = file.Timer.LongBreak
	}
	if file.Timer.SessionsBeforeLongBreak > 0 {
		cfg.Timer.SessionsBeforeLongBreak = file.Timer.SessionsBeforeLongBreak
	}
	return nil
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
