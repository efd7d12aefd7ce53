package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvVars = []string{
	"CONFIG_FILE", "SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "WORK_DIR",
	"MAX_UPLOAD_BYTES", "SHUTDOWN_TIMEOUT",
	"WHISPER_MODEL_PATH", "WHISPER_LANGUAGE", "VOSK_MODEL_PATH", "DEFAULT_METHOD",
	"FFMPEG_PATH", "MEDIA_SAMPLE_RATE_HZ", "MEDIA_CHUNK_FRAMES",
	"STT_GOOGLE_ENABLED", "GOOGLE_APPLICATION_CREDENTIALS", "STT_LANGUAGE_CODE",
	"STT_AUDIO_ENCODING", "STT_INTERIM_RESULTS",
	"STREAM_MAX_AUDIO_BYTES", "STREAM_MAX_DURATION",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_COMPLETED", "KAFKA_TOPIC_FAILED", "KAFKA_PRINCIPAL",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-media-transcription" {
		t.Errorf("expected default principal 'svc-media-transcription', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8000" {
		t.Errorf("expected default http port '8000', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default grpc port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.WorkDir != "." {
		t.Errorf("expected default work dir '.', got %s", cfg.Service.WorkDir)
	}
	if cfg.Service.MaxUploadBytes != 512*1024*1024 {
		t.Errorf("expected default max upload 512MB, got %d", cfg.Service.MaxUploadBytes)
	}

	if cfg.Models.VoskModelPath != "model" {
		t.Errorf("expected default vosk model path 'model', got %s", cfg.Models.VoskModelPath)
	}
	if cfg.Models.DefaultMethod != "whisper" {
		t.Errorf("expected default method 'whisper', got %s", cfg.Models.DefaultMethod)
	}

	if cfg.Media.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Media.SampleRateHz)
	}
	if cfg.Media.ChunkFrames != 4000 {
		t.Errorf("expected default chunk frames 4000, got %d", cfg.Media.ChunkFrames)
	}
	if cfg.Media.FFmpegPath != "ffmpeg" {
		t.Errorf("expected default ffmpeg path 'ffmpeg', got %s", cfg.Media.FFmpegPath)
	}

	if cfg.STT.GoogleEnabled {
		t.Error("expected google backend disabled by default")
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}

	if cfg.StreamLimits.MaxAudioBytes != 0 || cfg.StreamLimits.MaxDuration != 0 {
		t.Errorf("expected stream limits disabled by default, got %+v", cfg.StreamLimits)
	}

	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}
	if cfg.Kafka.TopicCompleted != "media.transcription.completed" {
		t.Errorf("unexpected completed topic %s", cfg.Kafka.TopicCompleted)
	}

	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9000")
	os.Setenv("WORK_DIR", "/tmp/uploads")
	os.Setenv("MAX_UPLOAD_BYTES", "1048576")
	os.Setenv("VOSK_MODEL_PATH", "/models/vosk-small")
	os.Setenv("MEDIA_CHUNK_FRAMES", "8000")
	os.Setenv("STT_GOOGLE_ENABLED", "true")
	os.Setenv("STREAM_MAX_DURATION", "10m")
	os.Setenv("KAFKA_ENABLED", "1")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9000" {
		t.Errorf("expected http port '9000', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.WorkDir != "/tmp/uploads" {
		t.Errorf("expected work dir '/tmp/uploads', got %s", cfg.Service.WorkDir)
	}
	if cfg.Service.MaxUploadBytes != 1048576 {
		t.Errorf("expected max upload 1048576, got %d", cfg.Service.MaxUploadBytes)
	}
	if cfg.Models.VoskModelPath != "/models/vosk-small" {
		t.Errorf("expected vosk path '/models/vosk-small', got %s", cfg.Models.VoskModelPath)
	}
	if cfg.Media.ChunkFrames != 8000 {
		t.Errorf("expected chunk frames 8000, got %d", cfg.Media.ChunkFrames)
	}
	if !cfg.STT.GoogleEnabled {
		t.Error("expected google backend enabled")
	}
	if cfg.StreamLimits.MaxDuration != 10*time.Minute {
		t.Errorf("expected max duration 10m, got %v", cfg.StreamLimits.MaxDuration)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("expected brokers [k1:9092 k2:9092], got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("MEDIA_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("STT_GOOGLE_ENABLED", "invalid")
	os.Setenv("MAX_UPLOAD_BYTES", "invalid")
	os.Setenv("STREAM_MAX_DURATION", "invalid")
	defer clearEnv()

	cfg := Load()

	if cfg.Media.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.Media.SampleRateHz)
	}
	if cfg.STT.GoogleEnabled {
		t.Errorf("expected default google flag on invalid input, got %v", cfg.STT.GoogleEnabled)
	}
	if cfg.Service.MaxUploadBytes != 512*1024*1024 {
		t.Errorf("expected default max upload on invalid input, got %d", cfg.Service.MaxUploadBytes)
	}
	if cfg.StreamLimits.MaxDuration != 0 {
		t.Errorf("expected default max duration on invalid input, got %v", cfg.StreamLimits.MaxDuration)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	clearEnv()
	defer clearEnv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service:
  http_port: "7000"
  work_dir: /var/lib/transcribe
models:
  vosk_model_path: /opt/vosk
media:
  chunk_frames: 2000
kafka:
  brokers: ["a:9092"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("HTTP_PORT", "7100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.HTTPPort != "7100" {
		t.Errorf("expected env to override yaml http port, got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.WorkDir != "/var/lib/transcribe" {
		t.Errorf("expected yaml work dir, got %s", cfg.Service.WorkDir)
	}
	if cfg.Models.VoskModelPath != "/opt/vosk" {
		t.Errorf("expected yaml vosk path, got %s", cfg.Models.VoskModelPath)
	}
	if cfg.Media.ChunkFrames != 2000 {
		t.Errorf("expected yaml chunk frames 2000, got %d", cfg.Media.ChunkFrames)
	}
	if cfg.Media.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate to survive yaml, got %d", cfg.Media.SampleRateHz)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "a:9092" {
		t.Errorf("expected yaml brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("service: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed config file")
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

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"single", "a:1", []string{"a:1"}},
		{"spaces and blanks", " a:1 , ,b:2 ", []string{"a:1", "b:2"}},
		{"only commas", ",,", []string{"default"}},
		{"unset", "", []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultList(key, []string{"default"})
			if len(got) != len(tt.expected) {
				t.Fatalf("envOrDefaultList(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("envOrDefaultList(%q)[%d] = %q, want %q", tt.envValue, i, got[i], tt.expected[i])
				}
			}
		})
	}
}
