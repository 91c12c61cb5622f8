/**
 * @description
 * Configuration management for the freight billing service. Settings come from
 * environment variables (and an optional .env file) through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 */
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultRedisKeyPrefix        = "freight:billing"
	defaultConfigCacheTTLSeconds = 300
	defaultPaymentTermsDays      = 30
	defaultDunningSweepSchedule  = "0 6 * * *" // Every day at 06:00 business time.
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix       string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	EventsExchange       string `mapstructure:"EVENTS_EXCHANGE"`
	ClerkJWKSURL         string `mapstructure:"CLERK_JWKS_URL"`
	ClerkAudience        string `mapstructure:"CLERK_AUDIENCE"`
	ClerkIssuer          string `mapstructure:"CLERK_ISSUER"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	BusinessTimezone     string `mapstructure:"BUSINESS_TIMEZONE"`
	DunningSweepSchedule string `mapstructure:"DUNNING_SWEEP_SCHEDULE"`

	// Numeric settings are parsed by hand so a bad value falls back to the
	// default instead of failing startup.
	ConfigCacheTTLSeconds   int `mapstructure:"-"`
	DefaultPaymentTermsDays int `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)
	viper.SetDefault("EVENTS_EXCHANGE", "freight.events")
	viper.SetDefault("BUSINESS_TIMEZONE", "Europe/Berlin")
	viper.SetDefault("DUNNING_SWEEP_SCHEDULE", defaultDunningSweepSchedule)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("CONFIG_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("CLERK_AUDIENCE")
	_ = viper.BindEnv("CLERK_ISSUER")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("DUNNING_SWEEP_SCHEDULE")
	_ = viper.BindEnv("DEFAULT_PAYMENT_TERMS_DAYS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	if config.DatabaseURL == "" {
		return config, errors.New("DATABASE_URL is required")
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if strings.TrimSpace(config.DunningSweepSchedule) == "" {
		config.DunningSweepSchedule = defaultDunningSweepSchedule
	}

	config.ConfigCacheTTLSeconds = nonNegativeInt("CONFIG_CACHE_TTL_SECONDS", defaultConfigCacheTTLSeconds)
	config.DefaultPaymentTermsDays = nonNegativeInt("DEFAULT_PAYMENT_TERMS_DAYS", defaultPaymentTermsDays)

	return config, nil
}

func nonNegativeInt(key string, fallback int) int {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		log.Printf("level=warn component=config msg=\"invalid %s; using default\" value=%q default=%d", key, raw, fallback)
		return fallback
	}
	return value
}
