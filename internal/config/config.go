/**
 * @description
 * This package handles the configuration management for the rewards-service. It uses the
 * Viper library to read configuration from an optional .env file and environment variables.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultServerPort              = "8080"
	defaultDatabaseMaxConns        = 50
	defaultDatabaseMinConns        = 5
	defaultEventsExchange          = "loyalty.events"
	defaultSessionCookieName       = "account"
	defaultDownloadLinkTTLHours    = 324
	defaultDownloadLinkSweep       = "@every 1h"
	defaultMaxCodesPerRequest      = 10000
	defaultSessionTTLHours         = 24
	defaultCORSAllowedOriginsValue = "*"
)

// ErrMissingSessionSecret is returned when SESSION_SECRET is unset.
var ErrMissingSessionSecret = errors.New("SESSION_SECRET is required")

// Config holds all the configuration variables for the rewards-service.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	DatabaseMaxConns          int32  `mapstructure:"DATABASE_MAX_CONNS"`
	DatabaseMinConns          int32  `mapstructure:"DATABASE_MIN_CONNS"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventsExchange            string `mapstructure:"EVENTS_EXCHANGE"`
	SessionSecret             string `mapstructure:"SESSION_SECRET"`
	SessionCookieName         string `mapstructure:"SESSION_COOKIE_NAME"`
	SessionTTLHours           int    `mapstructure:"SESSION_TTL_HOURS"`
	PublicBaseURL             string `mapstructure:"PUBLIC_BASE_URL"`
	CORSAllowedOrigins        string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	DownloadLinkTTLHours      int    `mapstructure:"DOWNLOAD_LINK_TTL_HOURS"`
	DownloadLinkSweepSchedule string `mapstructure:"DOWNLOAD_LINK_SWEEP_SCHEDULE"`
	MaxCodesPerRequest        int    `mapstructure:"MAX_CODES_PER_REQUEST"`
}

// DownloadLinkTTL returns the configured download link lifetime.
func (c Config) DownloadLinkTTL() time.Duration {
	return time.Duration(c.DownloadLinkTTLHours) * time.Hour
}

// SessionTTL returns the lifetime of issued session tokens.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("DATABASE_MAX_CONNS", defaultDatabaseMaxConns)
	viper.SetDefault("DATABASE_MIN_CONNS", defaultDatabaseMinConns)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("SESSION_COOKIE_NAME", defaultSessionCookieName)
	viper.SetDefault("SESSION_TTL_HOURS", defaultSessionTTLHours)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOriginsValue)
	viper.SetDefault("DOWNLOAD_LINK_TTL_HOURS", defaultDownloadLinkTTLHours)
	viper.SetDefault("DOWNLOAD_LINK_SWEEP_SCHEDULE", defaultDownloadLinkSweep)
	viper.SetDefault("MAX_CODES_PER_REQUEST", defaultMaxCodesPerRequest)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DATABASE_MAX_CONNS")
	_ = viper.BindEnv("DATABASE_MIN_CONNS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("SESSION_SECRET")
	_ = viper.BindEnv("SESSION_COOKIE_NAME")
	_ = viper.BindEnv("SESSION_TTL_HOURS")
	_ = viper.BindEnv("PUBLIC_BASE_URL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("DOWNLOAD_LINK_TTL_HOURS")
	_ = viper.BindEnv("DOWNLOAD_LINK_SWEEP_SCHEDULE")
	_ = viper.BindEnv("MAX_CODES_PER_REQUEST")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.SessionSecret = strings.TrimSpace(config.SessionSecret)
	if config.SessionSecret == "" {
		return config, ErrMissingSessionSecret
	}
	config.PublicBaseURL = strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/")
	if strings.TrimSpace(config.EventsExchange) == "" {
		config.EventsExchange = defaultEventsExchange
	}
	if strings.TrimSpace(config.SessionCookieName) == "" {
		config.SessionCookieName = defaultSessionCookieName
	}
	if strings.TrimSpace(config.DownloadLinkSweepSchedule) == "" {
		config.DownloadLinkSweepSchedule = defaultDownloadLinkSweep
	}

	if config.DatabaseMaxConns <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive DATABASE_MAX_CONNS; using default\" value=%d default=%d", config.DatabaseMaxConns, defaultDatabaseMaxConns)
		config.DatabaseMaxConns = defaultDatabaseMaxConns
	}
	if config.DatabaseMinConns <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive DATABASE_MIN_CONNS; using default\" value=%d default=%d", config.DatabaseMinConns, defaultDatabaseMinConns)
		config.DatabaseMinConns = defaultDatabaseMinConns
	}
	if config.DatabaseMinConns > config.DatabaseMaxConns {
		log.Printf("level=warn component=config msg=\"DATABASE_MIN_CONNS above DATABASE_MAX_CONNS; capping\" min=%d max=%d", config.DatabaseMinConns, config.DatabaseMaxConns)
		config.DatabaseMinConns = config.DatabaseMaxConns
	}
	if config.SessionTTLHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive SESSION_TTL_HOURS; using default\" value=%d default=%d", config.SessionTTLHours, defaultSessionTTLHours)
		config.SessionTTLHours = defaultSessionTTLHours
	}
	if config.DownloadLinkTTLHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive DOWNLOAD_LINK_TTL_HOURS; using default\" value=%d default=%d", config.DownloadLinkTTLHours, defaultDownloadLinkTTLHours)
		config.DownloadLinkTTLHours = defaultDownloadLinkTTLHours
	}
	if config.MaxCodesPerRequest <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive MAX_CODES_PER_REQUEST; using default\" value=%d default=%d", config.MaxCodesPerRequest, defaultMaxCodesPerRequest)
		config.MaxCodesPerRequest = defaultMaxCodesPerRequest
	}

	return
}
