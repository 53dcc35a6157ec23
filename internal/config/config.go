/**
 * @description
 * This package handles configuration management for the wallet gateway. It
 * uses the Viper library to read configuration from environment variables
 * (and an optional .env file), providing a centralized way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends selectable via SESSION_STORE.
const (
	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

// Config holds all the configuration variables for the wallet gateway.
// These values are loaded from environment variables.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	LedgerBaseURL      string `mapstructure:"LEDGER_BASE_URL"`
	LedgerAPIKey       string `mapstructure:"LEDGER_API_KEY"`
	StateDir           string `mapstructure:"STATE_DIR"`
	SessionStore       string `mapstructure:"SESSION_STORE"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	JWTSigningKey      string `mapstructure:"JWT_SIGNING_KEY"`
	SessionTokenTTLMin int    `mapstructure:"SESSION_TOKEN_TTL_MINUTES"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	ScanTickMillis     int    `mapstructure:"SCAN_TICK_MILLIS"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
}

// SessionTokenTTL returns the configured gateway session token lifetime.
func (c Config) SessionTokenTTL() time.Duration {
	return time.Duration(c.SessionTokenTTLMin) * time.Minute
}

// ScanTick returns the interval between biometric scan progress steps.
func (c Config) ScanTick() time.Duration {
	return time.Duration(c.ScanTickMillis) * time.Millisecond
}

// AllowedOrigins splits the CORS origin list.
func (c Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("LEDGER_BASE_URL", "http://localhost:5000")
	viper.SetDefault("STATE_DIR", ".swiftlend")
	viper.SetDefault("SESSION_STORE", SessionStoreFile)
	viper.SetDefault("JWT_SIGNING_KEY", "dev-signing-key-change-me")
	viper.SetDefault("SESSION_TOKEN_TTL_MINUTES", 12*60)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("SCAN_TICK_MILLIS", 50)
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("LEDGER_BASE_URL")
	_ = viper.BindEnv("LEDGER_API_KEY")
	_ = viper.BindEnv("STATE_DIR")
	_ = viper.BindEnv("SESSION_STORE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("JWT_SIGNING_KEY")
	_ = viper.BindEnv("SESSION_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("SCAN_TICK_MILLIS")
	_ = viper.BindEnv("LOG_LEVEL")

	// The .env file is optional; only surface real read failures.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
