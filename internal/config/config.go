package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки процесса бота.
// Конфигурация самой пары (спреды, объёмы, tolerance) приходит из overwatch
// в начале каждого цикла и здесь не хранится.
type Config struct {
	BotName  string
	Exchange string

	Venue     VenueConfig
	Overwatch OverwatchConfig
	Vigil     VigilConfig
	Telegram  TelegramConfig
	Price     PriceConfig

	// Паузы между разрушающими операциями (cancel -> place) и
	// между последовательными размещениями. Тюнить можно, убирать нельзя:
	// биржи с жёсткими лимитами начинают отбрасывать запросы.
	SleepShort  time.Duration
	SleepMedium time.Duration
	SleepLong   time.Duration

	CycleInterval time.Duration
	LogLevel      string
}

type VenueConfig struct {
	APIKey        string
	APISecret     string
	BaseURL       string
	RetryAttempts int
	RetryBackoff  time.Duration
	RatePerSecond float64
}

type OverwatchConfig struct {
	BaseURL   string
	APISecret string
}

type VigilConfig struct {
	BaseURL             string
	FundsChannelID      string
	WrapperErrorChannel string
}

// TelegramConfig опциональный второй канал алертов.
// Пустой токен выключает telegram целиком.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type PriceConfig struct {
	AggregatorURL string
}

// Load загружает конфигурацию из .env файла и окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	sleepShort, err := time.ParseDuration(getEnv("SLEEP_SHORT", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLEEP_SHORT: %w", err)
	}

	sleepMedium, err := time.ParseDuration(getEnv("SLEEP_MEDIUM", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLEEP_MEDIUM: %w", err)
	}

	sleepLong, err := time.ParseDuration(getEnv("SLEEP_LONG", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLEEP_LONG: %w", err)
	}

	cycleInterval, err := time.ParseDuration(getEnv("CYCLE_INTERVAL", "3m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CYCLE_INTERVAL: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("VENUE_RETRY_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_RETRY_ATTEMPTS: %w", err)
	}

	retryBackoff, err := time.ParseDuration(getEnv("VENUE_RETRY_BACKOFF", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_RETRY_BACKOFF: %w", err)
	}

	ratePerSecond, err := strconv.ParseFloat(getEnv("VENUE_RATE_PER_SECOND", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_RATE_PER_SECOND: %w", err)
	}

	config := &Config{
		BotName:  getEnv("BOT_NAME", ""),
		Exchange: getEnv("EXCHANGE", ""),
		Venue: VenueConfig{
			APIKey:        getEnv("API_KEY", ""),
			APISecret:     getEnv("API_SECRET", ""),
			BaseURL:       getEnv("BASE_URL", ""),
			RetryAttempts: retryAttempts,
			RetryBackoff:  retryBackoff,
			RatePerSecond: ratePerSecond,
		},
		Overwatch: OverwatchConfig{
			BaseURL:   getEnv("OVERWATCH_URL", "https://overwatch.crypto-daio.co.uk"),
			APISecret: getEnv("OVERWATCH_API_SECRET", ""),
		},
		Vigil: VigilConfig{
			BaseURL:             getEnv("VIGIL_URL", "https://vigil.crypto-daio.co.uk"),
			FundsChannelID:      getEnv("VIGIL_FUNDS_ALERT_CHANNEL_ID", ""),
			WrapperErrorChannel: getEnv("VIGIL_WRAPPER_ERROR_CHANNEL_ID", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Price: PriceConfig{
			AggregatorURL: getEnv("PRICE_AGGREGATOR_URL", "https://price-aggregator.crypto-daio.co.uk"),
		},
		SleepShort:    sleepShort,
		SleepMedium:   sleepMedium,
		SleepLong:     sleepLong,
		CycleInterval: cycleInterval,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if venuesFile := getEnv("VENUES_FILE", ""); venuesFile != "" {
		venues, err := LoadVenues(venuesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load venues file: %w", err)
		}
		config.applyVenueSettings(venues)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyVenueSettings подставляет значения из venues-файла там,
// где окружение их не задало
func (c *Config) applyVenueSettings(venues *Venues) {
	settings, ok := venues.Lookup(c.Exchange)
	if !ok {
		return
	}
	if c.Venue.BaseURL == "" {
		c.Venue.BaseURL = settings.BaseURL
	}
	if settings.RatePerSecond > 0 {
		c.Venue.RatePerSecond = settings.RatePerSecond
	}
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.BotName == "" {
		return fmt.Errorf("BOT_NAME is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("EXCHANGE is required")
	}
	if c.Venue.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Venue.APISecret == "" {
		return fmt.Errorf("API_SECRET is required")
	}
	if c.Overwatch.APISecret == "" {
		return fmt.Errorf("OVERWATCH_API_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
