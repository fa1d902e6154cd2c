package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	PostgresURL string
	HTTP        HTTPConfig
	Redis       RedisConfig
	Kafka       KafkaConfig

	// EvaluationInterval is how often the scheduler re-evaluates running
	// experiments against their early-stopping rules.
	EvaluationInterval time.Duration

	// AnalysisSamples is the Monte-Carlo draw count for Bayesian
	// comparisons.
	AnalysisSamples int
}

// HTTPConfig holds the server's connection timeouts.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// RedisConfig holds sticky-cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds lifecycle-event sink settings. Empty Brokers disables
// the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("SPLITLAB_ADDR", ":8080"),
		PostgresURL:        os.Getenv("SPLITLAB_POSTGRES_URL"),
		EvaluationInterval: envDurationOr("SPLITLAB_EVALUATION_INTERVAL", time.Hour),
		AnalysisSamples:    envIntOr("SPLITLAB_ANALYSIS_SAMPLES", 10000),
		HTTP: HTTPConfig{
			ReadHeaderTimeout: envDurationOr("SPLITLAB_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDurationOr("SPLITLAB_HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      envDurationOr("SPLITLAB_HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDurationOr("SPLITLAB_HTTP_IDLE_TIMEOUT", time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SPLITLAB_REDIS_URL"),
			PoolSize:     envIntOr("SPLITLAB_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("SPLITLAB_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("SPLITLAB_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("SPLITLAB_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("SPLITLAB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("SPLITLAB_KAFKA_TOPIC", "experiment.lifecycle"),
		},
	}
	if brokers := os.Getenv("SPLITLAB_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
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

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
