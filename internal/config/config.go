// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Environment always wins, so deployments can
// ship a base file and tune per-instance through the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	HTTP          HTTPConfig          `yaml:"http"`
	Provider      ProviderConfig      `yaml:"provider"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	Batch         BatchConfig         `yaml:"batch"`
	Session       SessionConfig       `yaml:"session"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal string `yaml:"principal"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

// ProviderConfig selects and addresses the transcription provider.
type ProviderConfig struct {
	// Mode is "mock" or "remote". Mock runs the service without provider
	// credentials, with scripted transcription results.
	Mode             string `yaml:"mode"`
	RealtimeEndpoint string `yaml:"realtimeEndpoint"`
	BatchBaseURL     string `yaml:"batchBaseUrl"`
	APIKey           string `yaml:"apiKey"`
}

// RealtimeConfig bounds the realtime streaming protocol.
type RealtimeConfig struct {
	ChunkSize              int           `yaml:"chunkSize"`
	ChunkInterval          time.Duration `yaml:"chunkInterval"`
	ReadTimeout            time.Duration `yaml:"readTimeout"`
	MaxMessages            int           `yaml:"maxMessages"`
	MaxConsecutiveTimeouts int           `yaml:"maxConsecutiveTimeouts"`
}

// BatchConfig bounds the batch fallback pipeline.
type BatchConfig struct {
	PollInterval    time.Duration `yaml:"pollInterval"`
	MaxPollAttempts int           `yaml:"maxPollAttempts"`
	MaxAudioBytes   int           `yaml:"maxAudioBytes"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// SessionConfig bounds what one capture session may accumulate.
type SessionConfig struct {
	MaxAudioBytes int `yaml:"maxAudioBytes"`
}

type KafkaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Principal string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	MetricsPort string `yaml:"metricsPort"`
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: "svc-speech-capture",
		},
		HTTP: HTTPConfig{
			Port: "8080",
		},
		Provider: ProviderConfig{
			Mode: "mock",
		},
		Realtime: RealtimeConfig{
			ChunkSize:              4096,
			ChunkInterval:          50 * time.Millisecond,
			ReadTimeout:            3 * time.Second,
			MaxMessages:            100,
			MaxConsecutiveTimeouts: 10,
		},
		Batch: BatchConfig{
			PollInterval:    2 * time.Second,
			MaxPollAttempts: 30,
			MaxAudioBytes:   10 * 1024 * 1024,
			RequestTimeout:  30 * time.Second,
		},
		Session: SessionConfig{
			MaxAudioBytes: 50 * 1024 * 1024,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Topic:   "session.scoring.requested",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: "9090",
		},
	}
}

// Load reads configuration from defaults, then the YAML file named by
// CONFIG_FILE (when set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.HTTP.Port = envOrDefault("HTTP_PORT", c.HTTP.Port)

	c.Provider.Mode = envOrDefault("PROVIDER_MODE", c.Provider.Mode)
	c.Provider.RealtimeEndpoint = envOrDefault("PROVIDER_REALTIME_ENDPOINT", c.Provider.RealtimeEndpoint)
	c.Provider.BatchBaseURL = envOrDefault("PROVIDER_BATCH_BASE_URL", c.Provider.BatchBaseURL)
	c.Provider.APIKey = envOrDefault("PROVIDER_API_KEY", c.Provider.APIKey)

	c.Realtime.ChunkSize = envOrDefaultInt("REALTIME_CHUNK_SIZE", c.Realtime.ChunkSize)
	c.Realtime.ChunkInterval = envOrDefaultDuration("REALTIME_CHUNK_INTERVAL", c.Realtime.ChunkInterval)
	c.Realtime.ReadTimeout = envOrDefaultDuration("REALTIME_READ_TIMEOUT", c.Realtime.ReadTimeout)
	c.Realtime.MaxMessages = envOrDefaultInt("REALTIME_MAX_MESSAGES", c.Realtime.MaxMessages)
	c.Realtime.MaxConsecutiveTimeouts = envOrDefaultInt("REALTIME_MAX_CONSECUTIVE_TIMEOUTS", c.Realtime.MaxConsecutiveTimeouts)

	c.Batch.PollInterval = envOrDefaultDuration("BATCH_POLL_INTERVAL", c.Batch.PollInterval)
	c.Batch.MaxPollAttempts = envOrDefaultInt("BATCH_MAX_POLL_ATTEMPTS", c.Batch.MaxPollAttempts)
	c.Batch.MaxAudioBytes = envOrDefaultInt("BATCH_MAX_AUDIO_BYTES", c.Batch.MaxAudioBytes)
	c.Batch.RequestTimeout = envOrDefaultDuration("BATCH_REQUEST_TIMEOUT", c.Batch.RequestTimeout)

	c.Session.MaxAudioBytes = envOrDefaultInt("SESSION_MAX_AUDIO_BYTES", c.Session.MaxAudioBytes)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers)
	}
	c.Kafka.Topic = envOrDefault("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsPort = envOrDefault("METRICS_PORT", c.Observability.MetricsPort)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
