// Package config loads and validates the bot settings from the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultBaseURL is the OpenWeatherMap 2.5 REST root
	DefaultBaseURL = "http://api.openweathermap.org/data/2.5"
	// DefaultUnits requests Celsius and m/s
	DefaultUnits = "metric"
	// DefaultLang is the language of weather descriptions
	DefaultLang = "ru"
	// DefaultDatabasePath is where the user registry lives when DATABASE_NAME is unset
	DefaultDatabasePath = "data/users.db"
	// DefaultTelegramEndpoint is the public Bot API; a self-hosted server can replace it
	DefaultTelegramEndpoint = "https://api.telegram.org/bot%s/%s"
	// DefaultStatsSchedule logs registry stats at the top of every hour
	DefaultStatsSchedule = "0 * * * *"

	// RequestTimeout bounds every call to the weather API
	RequestTimeout = 10 * time.Second

	// DriverSQLite stores users in a SQLite database
	DriverSQLite = "sqlite"
	// DriverBolt stores users in a bbolt file
	DriverBolt = "bolt"
)

// Config is built once at startup and passed to every component
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	TelegramBotToken    string
	TelegramAPIEndpoint string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	WeatherUnits       string
	WeatherLang        string
	Location           *time.Location

	StorageDriver string
	DatabasePath  string

	StatsSchedule string
}

// Load reads an optional .env file and then the process environment
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	// Variables already present in the environment take precedence over the file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return LoadFromEnv()
}

// LoadFromEnv builds a Config from environment variables, applying defaults
func LoadFromEnv() (Config, error) {
	appEnv := getEnvOrDefault("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", DriverSQLite))
	switch driver {
	case DriverSQLite, DriverBolt:
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_DRIVER %q (allowed: sqlite, bolt)", driver)
	}

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Local"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		TelegramBotToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		TelegramAPIEndpoint: getEnvOrDefault("TELEGRAM_API_ENDPOINT", DefaultTelegramEndpoint),
		OpenWeatherAPIKey:   strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL:  strings.TrimRight(getEnvOrDefault("OPENWEATHER_BASE_URL", DefaultBaseURL), "/"),
		WeatherUnits:        getEnvOrDefault("WEATHER_UNITS", DefaultUnits),
		WeatherLang:         getEnvOrDefault("WEATHER_LANG", DefaultLang),
		Location:            loc,
		StorageDriver:       driver,
		DatabasePath:        getEnvOrDefault("DATABASE_NAME", DefaultDatabasePath),
		StatsSchedule:       getEnvOrDefault("STATS_SCHEDULE", DefaultStatsSchedule),
	}, nil
}

// MissingSettingsError lists every required setting that has no value
type MissingSettingsError struct {
	Names []string
}

// Error names every missing variable and how to supply it
func (e *MissingSettingsError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s (copy .env.example to .env and fill them in)",
		strings.Join(e.Names, ", "))
}

// Validate checks that required credentials are present.
// The Telegram token is only required when requireBot is set.
func (c Config) Validate(requireBot bool) error {
	var missing []string
	if requireBot && c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.OpenWeatherAPIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Names: missing}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
