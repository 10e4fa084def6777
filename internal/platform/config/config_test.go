package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"CUSTOMERHUB_ADDR", "KAFKA_BROKERS", "REDIS_URL", "CUSTOMER_CACHE_TTL", "OUTBOX_POLL_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "customer.events", cfg.Kafka.EventsTopic)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CUSTOMERHUB_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("CUSTOMER_CACHE_TTL", "30s")
	t.Setenv("REDIS_POOL_SIZE", "32")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
}

func TestFromEnvReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("CUSTOMER_CACHE_TTL", "soon")
	t.Setenv("OUTBOX_BATCH_SIZE", "-1")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUSTOMER_CACHE_TTL")
	assert.Contains(t, err.Error(), "OUTBOX_BATCH_SIZE")
}
