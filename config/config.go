// config/config.go - Environment configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins string

	RateLimitRPS       float64
	RateLimitBurst     int
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	StoreTimeout   time.Duration
	LiveSendBuffer int

	DiscordBotToken  string
	DiscordChannelID string
}

// Load reads .env (if present) and the process environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool) {
	envFileLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:     GetEnv("PORT", "3000"),
		AppEnv:   GetEnv("APP_ENV", "development"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      GetEnv("DB_HOST", "localhost"),
		DBPort:      GetEnv("DB_PORT", "5432"),
		DBUser:      GetEnv("DB_USER", "postgres"),
		DBPassword:  GetEnv("DB_PASSWORD", ""),
		DBName:      GetEnv("DB_NAME", "huntparty"),
		DBSSLMode:   GetEnv("DB_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    time.Duration(GetEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,

		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:3000"),

		RateLimitRPS:       GetEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     GetEnvInt("RATE_LIMIT_BURST", 30),
		AuthRateLimitRPS:   GetEnvFloat("AUTH_RATE_LIMIT_RPS", 1),
		AuthRateLimitBurst: GetEnvInt("AUTH_RATE_LIMIT_BURST", 5),

		StoreTimeout:   time.Duration(GetEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
		LiveSendBuffer: GetEnvInt("LIVE_SEND_BUFFER", 64),

		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
	}

	return cfg, envFileLoaded
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// DebugEnabled reports whether debug logging should be printed.
func (c *Config) DebugEnabled() bool {
	return strings.EqualFold(c.LogLevel, "debug") || strings.EqualFold(c.AppEnv, "development")
}

// AnnouncementsEnabled reports whether both Discord settings are present.
func (c *Config) AnnouncementsEnabled() bool {
	return c.DiscordBotToken != "" && c.DiscordChannelID != ""
}

// Validate returns an error describing every fatal misconfiguration.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set (generate one with: openssl rand -base64 64)"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters long"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT_MS must be positive"))
	}
	if c.LiveSendBuffer <= 0 {
		errs = append(errs, errors.New("LIVE_SEND_BUFFER must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.AuthRateLimitRPS <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

// Warnings lists non-fatal problems worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.IsProduction() && (c.CORSOrigins == "" || c.CORSOrigins == "http://localhost:3000") {
		warnings = append(warnings, "CORS_ORIGINS not properly configured for production")
	}
	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		warnings = append(warnings, "DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must both be set; announcements disabled")
	}
	return warnings
}

func GetEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func GetEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}
