package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabaseURL  string
	StoreTimeout time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
	IssuePerMinute     int
	IssueBurst         int

	Timezone      string
	PurgeSchedule string
	HubSendBuffer int

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	NATSURL           string
	NATSSubjectPrefix string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	NotifyProvider     string
	NotifyWebhookURL   string
	NotifyWebhookToken string

	TelegramToken         string
	TelegramAdminChatID   string
	TelegramWebhookSecret string

	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment values win.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config loaded .env")
	}

	return Config{
		Port:         readString("PORT", "8080"),
		DatabaseURL:  os.Getenv("DB_DSN"),
		StoreTimeout: readDurationSeconds("STORE_TIMEOUT_SECONDS", 5),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  readDurationSeconds("TOKEN_TTL_SECONDS", 43200),

		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		IssuePerMinute:     readInt("RATE_LIMIT_TICKETS_PER_MIN", 6),
		IssueBurst:         readInt("RATE_LIMIT_TICKETS_BURST", 3),

		Timezone:      readString("QUEUE_TIMEZONE", "Asia/Almaty"),
		PurgeSchedule: readString("PURGE_SCHEDULE", "0 18 * * *"),
		HubSendBuffer: readInt("HUB_SEND_BUFFER", 16),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  readString("REDIS_CHANNEL", "queue:events"),

		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: readString("NATS_SUBJECT_PREFIX", "queue.events"),

		OutboxPollInterval: readDurationSeconds("OUTBOX_POLL_SECONDS", 2),
		OutboxBatchSize:    readInt("OUTBOX_BATCH_SIZE", 100),

		NotifyProvider:     readString("NOTIFY_PROVIDER", "log"),
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyWebhookToken: os.Getenv("NOTIFY_WEBHOOK_TOKEN"),

		TelegramToken:         os.Getenv("TELEGRAM_TOKEN"),
		TelegramAdminChatID:   os.Getenv("TELEGRAM_ADMIN_CHAT_ID"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func readString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
