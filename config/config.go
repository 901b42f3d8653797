package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	CORS_ORIGIN string
	APP_URL     string
	APP_ENV     string

	LOG_LEVEL  string
	LOG_FORMAT string

	STRIPE_SECRET_KEY     string
	STRIPE_WEBHOOK_SECRET string

	SECRETS_MASTER_KEY string

	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	RABBITMQ_URL string

	AGENT_RUNTIME_URL     string
	AGENT_RUNTIME_TOKEN   string
	AGENT_CALLBACK_SECRET string

	PLATFORM_COMMISSION_PERCENT string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_FROM     string
	SMTP_PASSWORD string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "http://localhost:5173")
	APP_URL = getEnv("APP_URL", "http://localhost:5173")
	APP_ENV = getEnv("APP_ENV", "development")

	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	LOG_FORMAT = getEnv("LOG_FORMAT", "json")

	STRIPE_SECRET_KEY = getEnv("STRIPE_SECRET_KEY", "")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")

	SECRETS_MASTER_KEY = mustEnv("SECRETS_MASTER_KEY")

	// Redis, RabbitMQ and the agent runtime are optional; empty means in-process fallback.
	REDIS_ADDR = getEnv("REDIS_ADDR", "")
	REDIS_PASSWORD = getEnv("REDIS_PASSWORD", "")
	REDIS_DB = getEnvInt("REDIS_DB", 0)

	RABBITMQ_URL = getEnv("RABBITMQ_URL", "")

	AGENT_RUNTIME_URL = getEnv("AGENT_RUNTIME_URL", "")
	AGENT_RUNTIME_TOKEN = getEnv("AGENT_RUNTIME_TOKEN", "")
	AGENT_CALLBACK_SECRET = getEnv("AGENT_CALLBACK_SECRET", "")

	PLATFORM_COMMISSION_PERCENT = getEnv("PLATFORM_COMMISSION_PERCENT", "10")

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	SMTP_HOST = getEnv("SMTP_HOST", "")
	SMTP_PORT = getEnv("SMTP_PORT", "587")
	SMTP_FROM = getEnv("SMTP_FROM", "")
	SMTP_PASSWORD = getEnv("SMTP_PASSWORD", "")
}

func IsProduction() bool {
	return APP_ENV == "production"
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
