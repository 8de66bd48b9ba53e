// Package config reads the bot's environment configuration. Required
// provider credentials are deliberately not validated here: the client
// reports them at call time with a descriptive error instead of taking the
// whole process down at boot.
package config

import (
	"os"
	"strconv"
)

// Config is the environment-derived process configuration.
type Config struct {
	LuarmorAPIKey    string
	LuarmorProjectID string

	DiscordWebhookURL string
	UnbanWebhookURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MetricsAddr string
	LogLevel    string
}

// FromEnv builds a Config from the process environment.
func FromEnv() Config {
	return Config{
		LuarmorAPIKey:    os.Getenv("LUARMOR_API_KEY"),
		LuarmorProjectID: os.Getenv("LUARMOR_PROJECT_ID"),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		UnbanWebhookURL:   os.Getenv("UNBAN_WEBHOOK_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		MetricsAddr: envDefault("METRICS_ADDR", ":9090"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
