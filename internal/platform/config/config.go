package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "customerhub/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// CardEncryptionKey is the base64 master key for card number sealing.
	CardEncryptionKey string
	CardKeyID         string

	Redis    RedisConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
	CacheTTL time.Duration
}

// RedisConfig configures the customer view cache. An empty URL disables Redis
// and the service falls back to the in-process cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures event publication and the card validation consumer.
// No brokers means events stay in the outbox and no consumer runs.
type KafkaConfig struct {
	Brokers               []string
	ClientID              string
	EventsTopic           string
	CardValidationTopic   string
	CardValidationGroupID string
	Partitions            int32
	ReplicationFactor     int16
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Retention    time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	p := parser{errs: &errs}

	cfg := Server{
		Addr:              env("CUSTOMERHUB_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          env("LOG_LEVEL", "info"),
		JWTSigningKey:     env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:         env("JWT_ISSUER", "customerhub"),
		JWTAudience:       env("JWT_AUDIENCE", "customerhub-operators"),
		CardEncryptionKey: os.Getenv("CARD_ENCRYPTION_KEY"),
		CardKeyID:         env("CARD_KEY_ID", "k1"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:               pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:              env("KAFKA_CLIENT_ID", "customerhub"),
			EventsTopic:           env("KAFKA_EVENTS_TOPIC", "customer.events"),
			CardValidationTopic:   env("KAFKA_CARD_VALIDATION_TOPIC", "card.validation.results"),
			CardValidationGroupID: env("KAFKA_CARD_VALIDATION_GROUP", "customerhub-card-validation"),
			Partitions:            int32(p.int("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor:     int16(p.int("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Outbox: OutboxConfig{
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    p.int("OUTBOX_BATCH_SIZE", 100),
			Retention:    p.duration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
		CacheTTL: p.duration("CUSTOMER_CACHE_TTL", 5*time.Minute),
	}

	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs *[]string
}

func (p parser) int(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		*p.errs = append(*p.errs, key+" must be a non-negative integer")
		return fallback
	}
	return n
}

func (p parser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*p.errs = append(*p.errs, key+" must be a positive duration")
		return fallback
	}
	return d
}
