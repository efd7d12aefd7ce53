// Package config loads service configuration from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the complete runtime configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	Models        ModelsConfig        `yaml:"models"`
	Media         MediaConfig         `yaml:"media"`
	STT           STTConfig           `yaml:"stt"`
	StreamLimits  StreamLimitsConfig  `yaml:"stream_limits"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds listener and request-handling settings.
type ServiceConfig struct {
	Principal       string        `yaml:"principal"`
	HTTPPort        string        `yaml:"http_port"`
	GRPCPort        string        `yaml:"grpc_port"`
	WorkDir         string        `yaml:"work_dir"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelsConfig points at the on-disk model artifacts.
type ModelsConfig struct {
	WhisperModelPath string `yaml:"whisper_model_path"`
	WhisperLanguage  string `yaml:"whisper_language"`
	VoskModelPath    string `yaml:"vosk_model_path"`
	DefaultMethod    string `yaml:"default_method"`
}

// MediaConfig controls audio extraction from video uploads.
type MediaConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path"`
	SampleRateHz int    `yaml:"sample_rate_hz"`
	ChunkFrames  int    `yaml:"chunk_frames"`
}

// STTConfig configures the optional Google Cloud Speech backend.
type STTConfig struct {
	GoogleEnabled   bool   `yaml:"google_enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	LanguageCode    string `yaml:"language_code"`
	AudioEncoding   string `yaml:"audio_encoding"`
	InterimResults  bool   `yaml:"interim_results"`
}

// StreamLimitsConfig bounds a single streaming transcription. Zero disables a limit.
type StreamLimitsConfig struct {
	MaxAudioBytes int64         `yaml:"max_audio_bytes"`
	MaxDuration   time.Duration `yaml:"max_duration"`
}

// KafkaConfig configures transcription event publishing.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicCompleted string   `yaml:"topic_completed"`
	TopicFailed    string   `yaml:"topic_failed"`
	Principal      string   `yaml:"principal"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Defaults returns the built-in configuration.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:       "svc-media-transcription",
			HTTPPort:        "8000",
			GRPCPort:        "50051",
			WorkDir:         ".",
			MaxUploadBytes:  512 * 1024 * 1024,
			ShutdownTimeout: 15 * time.Second,
		},
		Models: ModelsConfig{
			WhisperModelPath: "models/ggml-base.bin",
			WhisperLanguage:  "auto",
			VoskModelPath:    "model",
			DefaultMethod:    "whisper",
		},
		Media: MediaConfig{
			FFmpegPath:   "ffmpeg",
			SampleRateHz: 16000,
			ChunkFrames:  4000,
		},
		STT: STTConfig{
			LanguageCode:  "en-US",
			AudioEncoding: "LINEAR16",
		},
		Kafka: KafkaConfig{
			TopicCompleted: "media.transcription.completed",
			TopicFailed:    "media.transcription.failed",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load builds the configuration from defaults and environment variables.
// If CONFIG_FILE is set and readable it is applied before the environment.
func Load() *Configuration {
	cfg, err := LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		cfg = Defaults()
		applyEnv(cfg)
	}
	return cfg
}

// LoadFile builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and environment variables, in that order.
func LoadFile(path string) (*Configuration, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.WorkDir = envOrDefault("WORK_DIR", cfg.Service.WorkDir)
	cfg.Service.MaxUploadBytes = envOrDefaultInt64("MAX_UPLOAD_BYTES", cfg.Service.MaxUploadBytes)
	cfg.Service.ShutdownTimeout = envOrDefaultDuration("SHUTDOWN_TIMEOUT", cfg.Service.ShutdownTimeout)

	cfg.Models.WhisperModelPath = envOrDefault("WHISPER_MODEL_PATH", cfg.Models.WhisperModelPath)
	cfg.Models.WhisperLanguage = envOrDefault("WHISPER_LANGUAGE", cfg.Models.WhisperLanguage)
	cfg.Models.VoskModelPath = envOrDefault("VOSK_MODEL_PATH", cfg.Models.VoskModelPath)
	cfg.Models.DefaultMethod = envOrDefault("DEFAULT_METHOD", cfg.Models.DefaultMethod)

	cfg.Media.FFmpegPath = envOrDefault("FFMPEG_PATH", cfg.Media.FFmpegPath)
	cfg.Media.SampleRateHz = envOrDefaultInt("MEDIA_SAMPLE_RATE_HZ", cfg.Media.SampleRateHz)
	cfg.Media.ChunkFrames = envOrDefaultInt("MEDIA_CHUNK_FRAMES", cfg.Media.ChunkFrames)

	cfg.STT.GoogleEnabled = envOrDefaultBool("STT_GOOGLE_ENABLED", cfg.STT.GoogleEnabled)
	cfg.STT.CredentialsFile = envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", cfg.STT.CredentialsFile)
	cfg.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", cfg.STT.LanguageCode)
	cfg.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", cfg.STT.AudioEncoding)
	cfg.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", cfg.STT.InterimResults)

	cfg.StreamLimits.MaxAudioBytes = envOrDefaultInt64("STREAM_MAX_AUDIO_BYTES", cfg.StreamLimits.MaxAudioBytes)
	cfg.StreamLimits.MaxDuration = envOrDefaultDuration("STREAM_MAX_DURATION", cfg.StreamLimits.MaxDuration)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicCompleted = envOrDefault("KAFKA_TOPIC_COMPLETED", cfg.Kafka.TopicCompleted)
	cfg.Kafka.TopicFailed = envOrDefault("KAFKA_TOPIC_FAILED", cfg.Kafka.TopicFailed)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", cfg.Observability.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
