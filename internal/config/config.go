// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read at startup.
type Config struct {
	HTTPAddr      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL          string
	AttachmentBucket string
	PublicBaseURL    string

	JWTSecret     string
	GuestTokenTTL time.Duration

	UploadTimeout      time.Duration
	MaxAttachmentBytes int64

	BcryptCost            int
	ReactionScope         string
	ReplyFetchConcurrency int
	WriteRetries          int
	WriteRetryDelay       time.Duration
	SeedRooms             bool
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return Config{
		HTTPAddr:      GetEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   GetEnv("DATABASE_URL", "host=localhost user=user password=password dbname=circleupdb port=5432 sslmode=disable"),
		RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6380"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		NATSURL:          GetEnv("NATS_URL", "nats://localhost:4222"),
		AttachmentBucket: GetEnv("ATTACHMENT_BUCKET", "chat-attachments"),
		PublicBaseURL:    GetEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		JWTSecret:     GetEnv("JWT_SECRET", "YOUR_ULTRA_SECRET_KEY_HERE"),
		GuestTokenTTL: GetEnvDuration("GUEST_TOKEN_TTL", 72*time.Hour),

		UploadTimeout:      GetEnvDuration("UPLOAD_TIMEOUT", DefaultUploadTimeout),
		MaxAttachmentBytes: int64(GetEnvInt("MAX_ATTACHMENT_BYTES", DefaultMaxAttachmentBytes)),

		BcryptCost:            GetEnvInt("BCRYPT_COST", 12),
		ReactionScope:         GetEnv("REACTION_SCOPE", "user"),
		ReplyFetchConcurrency: GetEnvInt("REPLY_FETCH_CONCURRENCY", DefaultReplyFetchConcurrency),
		WriteRetries:          GetEnvInt("WRITE_RETRIES", DefaultWriteRetries),
		WriteRetryDelay:       GetEnvDuration("WRITE_RETRY_DELAY", DefaultWriteRetryDelay),
		SeedRooms:             GetEnvBool("SEED_ROOMS", true),
	}
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an integer or a default value
func GetEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvBool parses values accepted by strconv.ParseBool.
func GetEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvDuration parses values such as "30s" or "72h".
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
