/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the economy-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	RedisCooldownPrefix string `mapstructure:"REDIS_COOLDOWN_PREFIX"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	AuthJWTSecret       string `mapstructure:"AUTH_JWT_SECRET"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	PagerBotURL         string `mapstructure:"PAGER_BOT_URL"`
	PagerBotSecret      string `mapstructure:"PAGER_BOT_SECRET"`
	CallCooldownSeconds int    `mapstructure:"CALL_COOLDOWN_SECONDS"`
	TreasuryCardNumber  int    `mapstructure:"TREASURY_CARD_NUMBER"`
	StartingBalance     int64  `mapstructure:"STARTING_BALANCE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_COOLDOWN_PREFIX", "economy:cooldown")
	viper.SetDefault("CALL_COOLDOWN_SECONDS", 300)
	viper.SetDefault("TREASURY_CARD_NUMBER", 10000)
	viper.SetDefault("STARTING_BALANCE", 0)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "ECONOMY_REDIS_URL")
	_ = viper.BindEnv("REDIS_COOLDOWN_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWT_SECRET", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "ECONOMY_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("PAGER_BOT_URL", "PAGER_BOT_URL", "BOT_API_URL")
	_ = viper.BindEnv("PAGER_BOT_SECRET", "PAGER_BOT_SECRET", "BOT_API_SECRET")
	_ = viper.BindEnv("CALL_COOLDOWN_SECONDS")
	_ = viper.BindEnv("TREASURY_CARD_NUMBER")
	_ = viper.BindEnv("STARTING_BALANCE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisCooldownPrefix = strings.TrimSpace(config.RedisCooldownPrefix)
	if config.RedisCooldownPrefix == "" {
		config.RedisCooldownPrefix = "economy:cooldown"
	}
	config.PagerBotURL = strings.TrimSpace(config.PagerBotURL)

	if config.CallCooldownSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive call cooldown configured; using default\" seconds=%d", config.CallCooldownSeconds)
		config.CallCooldownSeconds = 300
	}
	if config.TreasuryCardNumber < 10000 || config.TreasuryCardNumber > 99999 {
		log.Printf("level=warn component=config msg=\"treasury card number out of range; using default\" card_number=%d", config.TreasuryCardNumber)
		config.TreasuryCardNumber = 10000
	}
	if config.StartingBalance < 0 {
		log.Printf("level=warn component=config msg=\"negative starting balance configured; coercing to zero\" balance=%d", config.StartingBalance)
		config.StartingBalance = 0
	}

	return
}
