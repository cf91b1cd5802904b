package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server process.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string

	// Bot / AI collaborator
	BotProvider string // "openai" or "anthropic"
	BotAPIKey   string
	BotModel    string

	// Code execution
	PythonBin string
}

// Load reads configuration from environment variables.
// In development, it loads from a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:        getEnv("ADDR", ":8080"),
		DatabaseURL: os.Getenv("DB_DSN"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		BotProvider: getEnv("BOT_PROVIDER", "openai"),
		BotAPIKey:   os.Getenv("BOT_API_KEY"),
		BotModel:    getEnv("BOT_MODEL", ""),
		PythonBin:   getEnv("PYTHON_BIN", "python3"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
