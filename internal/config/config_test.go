package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var managedEnvVars = []string{
	"CONFIG_FILE", "SERVICE_PRINCIPAL", "HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT", "METRICS_PORT",
	"PROVIDER_MODE", "PROVIDER_REALTIME_ENDPOINT", "PROVIDER_BATCH_BASE_URL", "PROVIDER_API_KEY",
	"REALTIME_CHUNK_SIZE", "REALTIME_CHUNK_INTERVAL", "REALTIME_READ_TIMEOUT",
	"REALTIME_MAX_MESSAGES", "REALTIME_MAX_CONSECUTIVE_TIMEOUTS",
	"BATCH_POLL_INTERVAL", "BATCH_MAX_POLL_ATTEMPTS", "BATCH_MAX_AUDIO_BYTES", "BATCH_REQUEST_TIMEOUT",
	"SESSION_MAX_AUDIO_BYTES",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_PRINCIPAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range managedEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Principal != "svc-speech-capture" {
		t.Errorf("expected default principal 'svc-speech-capture', got %s", cfg.Service.Principal)
	}
	if cfg.HTTP.Port != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.HTTP.Port)
	}
	if cfg.Provider.Mode != "mock" {
		t.Errorf("expected default provider mode 'mock', got %s", cfg.Provider.Mode)
	}

	if cfg.Realtime.ChunkSize != 4096 {
		t.Errorf("expected default chunk size 4096, got %d", cfg.Realtime.ChunkSize)
	}
	if cfg.Realtime.ChunkInterval != 50*time.Millisecond {
		t.Errorf("expected default chunk interval 50ms, got %v", cfg.Realtime.ChunkInterval)
	}
	if cfg.Realtime.ReadTimeout != 3*time.Second {
		t.Errorf("expected default read timeout 3s, got %v", cfg.Realtime.ReadTimeout)
	}
	if cfg.Realtime.MaxMessages != 100 {
		t.Errorf("expected default max messages 100, got %d", cfg.Realtime.MaxMessages)
	}
	if cfg.Realtime.MaxConsecutiveTimeouts != 10 {
		t.Errorf("expected default max consecutive timeouts 10, got %d", cfg.Realtime.MaxConsecutiveTimeouts)
	}

	if cfg.Batch.PollInterval != 2*time.Second {
		t.Errorf("expected default poll interval 2s, got %v", cfg.Batch.PollInterval)
	}
	if cfg.Batch.MaxPollAttempts != 30 {
		t.Errorf("expected default max poll attempts 30, got %d", cfg.Batch.MaxPollAttempts)
	}
	if cfg.Batch.MaxAudioBytes != 10*1024*1024 {
		t.Errorf("expected default batch max audio bytes 10MB, got %d", cfg.Batch.MaxAudioBytes)
	}

	if cfg.Session.MaxAudioBytes != 50*1024*1024 {
		t.Errorf("expected default session max audio bytes 50MB, got %d", cfg.Session.MaxAudioBytes)
	}

	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("PROVIDER_MODE", "remote")
	os.Setenv("PROVIDER_REALTIME_ENDPOINT", "wss://stt.example/realtime")
	os.Setenv("PROVIDER_BATCH_BASE_URL", "https://stt.example")
	os.Setenv("PROVIDER_API_KEY", "secret")
	os.Setenv("REALTIME_CHUNK_SIZE", "8192")
	os.Setenv("REALTIME_CHUNK_INTERVAL", "25ms")
	os.Setenv("BATCH_MAX_POLL_ATTEMPTS", "60")
	os.Setenv("SESSION_MAX_AUDIO_BYTES", "1048576")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	os.Setenv("KAFKA_TOPIC", "custom.topic")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.HTTP.Port != "9999" {
		t.Errorf("expected HTTP port '9999', got %s", cfg.HTTP.Port)
	}
	if cfg.Provider.Mode != "remote" {
		t.Errorf("expected provider mode 'remote', got %s", cfg.Provider.Mode)
	}
	if cfg.Provider.RealtimeEndpoint != "wss://stt.example/realtime" {
		t.Errorf("unexpected realtime endpoint %s", cfg.Provider.RealtimeEndpoint)
	}
	if cfg.Realtime.ChunkSize != 8192 {
		t.Errorf("expected chunk size 8192, got %d", cfg.Realtime.ChunkSize)
	}
	if cfg.Realtime.ChunkInterval != 25*time.Millisecond {
		t.Errorf("expected chunk interval 25ms, got %v", cfg.Realtime.ChunkInterval)
	}
	if cfg.Batch.MaxPollAttempts != 60 {
		t.Errorf("expected max poll attempts 60, got %d", cfg.Batch.MaxPollAttempts)
	}
	if cfg.Session.MaxAudioBytes != 1048576 {
		t.Errorf("expected session max audio bytes 1048576, got %d", cfg.Session.MaxAudioBytes)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("expected trimmed broker list, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "custom.topic" {
		t.Errorf("expected topic 'custom.topic', got %s", cfg.Kafka.Topic)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("REALTIME_CHUNK_SIZE", "not-a-number")
	os.Setenv("REALTIME_CHUNK_INTERVAL", "invalid")
	os.Setenv("BATCH_MAX_POLL_ATTEMPTS", "invalid")
	os.Setenv("KAFKA_ENABLED", "invalid")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Realtime.ChunkSize != 4096 {
		t.Errorf("expected default chunk size on invalid input, got %d", cfg.Realtime.ChunkSize)
	}
	if cfg.Realtime.ChunkInterval != 50*time.Millisecond {
		t.Errorf("expected default chunk interval on invalid input, got %v", cfg.Realtime.ChunkInterval)
	}
	if cfg.Batch.MaxPollAttempts != 30 {
		t.Errorf("expected default max poll attempts on invalid input, got %d", cfg.Batch.MaxPollAttempts)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled on invalid input")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
service:
  principal: file-principal
provider:
  mode: remote
  batchBaseUrl: https://stt.example
realtime:
  chunkSize: 2048
kafka:
  enabled: true
  brokers: [broker-1:9092]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	os.Setenv("CONFIG_FILE", path)
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Principal != "file-principal" {
		t.Errorf("expected principal from file, got %s", cfg.Service.Principal)
	}
	if cfg.Provider.Mode != "remote" {
		t.Errorf("expected provider mode from file, got %s", cfg.Provider.Mode)
	}
	if cfg.Realtime.ChunkSize != 2048 {
		t.Errorf("expected chunk size from file, got %d", cfg.Realtime.ChunkSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Realtime.MaxMessages != 100 {
		t.Errorf("expected default max messages, got %d", cfg.Realtime.MaxMessages)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: \"7070\"\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	os.Setenv("CONFIG_FILE", path)
	os.Setenv("HTTP_PORT", "6060")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != "6060" {
		t.Errorf("expected env to beat file, got %s", cfg.HTTP.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	os.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
