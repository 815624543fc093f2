package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	JWTExpiryMin  int
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MessageSecret keys message encryption at rest. It must be exactly
	// 32 bytes; undersized secrets are a startup error, never padded.
	MessageSecret string
	// MessageKeyID is stored alongside each ciphertext so the key can be
	// rotated later without breaking old records.
	MessageKeyID string

	// Bounds for message listing. History is append-only, so reads are
	// windowed instead of unbounded.
	ConversationPageLimit int
	AggregatorScanLimit   int
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		AppPort:               getEnv("APP_PORT", "8080"),
		AppMode:               getEnv("APP_MODE", "debug"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "cosmic_chat"),
		DBPort:                getEnv("DB_PORT", "5432"),
		JWTSecret:             getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:          getEnvAsInt("JWT_EXPIRY_MIN", 60),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		MessageSecret:         getEnv("MESSAGE_SECRET", ""),
		MessageKeyID:          getEnv("MESSAGE_KEY_ID", "k1"),
		ConversationPageLimit: getEnvAsInt("CONVERSATION_PAGE_LIMIT", 100),
		AggregatorScanLimit:   getEnvAsInt("AGGREGATOR_SCAN_LIMIT", 500),
	}

	if len(cfg.MessageSecret) != 32 {
		return nil, fmt.Errorf("MESSAGE_SECRET must be exactly 32 bytes, got %d", len(cfg.MessageSecret))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
