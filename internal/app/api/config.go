package api

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	orderserver "github.com/Apurer/bookshop-order-service/go"
	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port        string
	PostgresDSN string

	CatalogURI          string
	CatalogTimeout      time.Duration
	CatalogMaxRetries   int
	CatalogRetryBackoff time.Duration

	KafkaBrokers         []string
	KafkaAcceptedTopic   string
	KafkaDispatchedTopic string
	KafkaConsumerGroup   string

	RedisAddr string

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	IdentityHeader string
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                 envDefault("PORT", "8080"),
		PostgresDSN:          strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		CatalogURI:           envDefault("CATALOG_SERVICE_URI", "http://localhost:9001"),
		KafkaBrokers:         platformkafka.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAcceptedTopic:   envDefault("KAFKA_ACCEPTED_TOPIC", "order-accepted"),
		KafkaDispatchedTopic: envDefault("KAFKA_DISPATCHED_TOPIC", "order-dispatched"),
		KafkaConsumerGroup:   envDefault("KAFKA_CONSUMER_GROUP", "order-service"),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		TemporalAddress:      envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:    envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:     isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		IdentityHeader:       envDefault("IDENTITY_HEADER", orderserver.DefaultIdentityHeader),
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("PORT must be a TCP port number, got %q", cfg.Port)
	}
	if u, err := url.Parse(cfg.CatalogURI); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("CATALOG_SERVICE_URI must be an absolute URL, got %q", cfg.CatalogURI)
	}

	timeoutMS, err := envInt("CATALOG_TIMEOUT_MS", 3000, 1)
	if err != nil {
		return Config{}, err
	}
	retries, err := envInt("CATALOG_MAX_RETRIES", 3, 0)
	if err != nil {
		return Config{}, err
	}
	backoffMS, err := envInt("CATALOG_RETRY_BACKOFF_MS", 100, 0)
	if err != nil {
		return Config{}, err
	}
	cfg.CatalogTimeout = time.Duration(timeoutMS) * time.Millisecond
	cfg.CatalogMaxRetries = retries
	cfg.CatalogRetryBackoff = time.Duration(backoffMS) * time.Millisecond
	return cfg, nil
}

// KafkaEnabled reports whether notifications travel over Kafka instead of the in-process bus.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// envInt parses key as an integer no smaller than min, returning fallback when unset.
func envInt(key string, fallback, min int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min {
		return 0, fmt.Errorf("%s must be an integer >= %d, got %q", key, min, raw)
	}
	return value, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
