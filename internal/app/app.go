// Package app owns the process-wide service context: loaded models, the
// ffmpeg runner, the event publisher and readiness.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	grpcapi "media-transcription-service/internal/api/grpc"
	"media-transcription-service/internal/config"
	"media-transcription-service/internal/events"
	"media-transcription-service/internal/observability/metrics"
	"media-transcription-service/internal/schema"
	"media-transcription-service/internal/service/ffmpeg"
	"media-transcription-service/internal/service/stt"
	"media-transcription-service/internal/service/transcription"
)

// VoskModelsURL is where Vosk model archives are published.
const VoskModelsURL = "https://alphacephei.com/vosk/models"

var (
	// ErrModelNotFound is returned by Start when a model artifact is missing.
	ErrModelNotFound = errors.New("model not found")
	// ErrNotStarted is returned by Service before Start has succeeded.
	ErrNotStarted = errors.New("application not started")
)

// Backend is a loaded transcription backend and the hook that releases it.
type Backend struct {
	Method      stt.Method
	Transcriber stt.Transcriber
	Release     func() error
}

// ModelLoader loads the speech models named in the configuration.
type ModelLoader interface {
	Load(ctx context.Context, cfg *config.Configuration) ([]Backend, error)
}

// ModelLoaderFunc adapts a function to ModelLoader.
type ModelLoaderFunc func(ctx context.Context, cfg *config.Configuration) ([]Backend, error)

func (f ModelLoaderFunc) Load(ctx context.Context, cfg *config.Configuration) ([]Backend, error) {
	return f(ctx, cfg)
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	loader    ModelLoader
	extractor *ffmpeg.Extractor
	publisher *events.Publisher
	health    *grpcapi.Health

	mu       sync.Mutex
	backends []Backend
	service  *transcription.Service
	ready    atomic.Bool
	stopped  bool
}

// Option configures an Application.
type Option func(*Application)

// WithCommandRunner replaces the runner used to spawn ffmpeg.
func WithCommandRunner(r ffmpeg.CommandRunner) Option {
	return func(a *Application) {
		a.extractor = newExtractor(a.Cfg, r)
	}
}

// New constructs a new Application from the provided configuration.
// Models are not loaded until Start.
func New(cfg *config.Configuration, loader ModelLoader, opts ...Option) *Application {
	a := &Application{
		Cfg:    cfg,
		loader: loader,
		health: grpcapi.NewHealth(),
	}
	a.Logger = log.With().
		Str("service", "media-transcription-service").
		Str("component", "application").
		Logger()
	a.extractor = newExtractor(cfg, ffmpeg.NewExecCommandRunner())
	a.publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
		Validator:      schema.New(),
	})

	for _, opt := range opts {
		opt(a)
	}

	a.Logger.Info().Str("method", "New").Msg("Media transcription application created")
	return a
}

func newExtractor(cfg *config.Configuration, r ffmpeg.CommandRunner) *ffmpeg.Extractor {
	return ffmpeg.NewExtractor(
		ffmpeg.WithFFmpegPath(cfg.Media.FFmpegPath),
		ffmpeg.WithSampleRate(cfg.Media.SampleRateHz),
		ffmpeg.WithCommandRunner(r),
	)
}

// Start loads every model, verifies ffmpeg and marks the service ready.
// A missing Vosk model directory fails startup.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().Str("method", "Start").Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Media transcription service starting")

	if err := CheckVoskModel(a.Cfg.Models.VoskModelPath); err != nil {
		return err
	}

	backends, err := a.loader.Load(ctx, a.Cfg)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	if err := a.extractor.VerifyInstalled(ctx); err != nil {
		startLogger.Warn().Err(err).Msg("ffmpeg check failed, video uploads will fail")
	}

	opts := []transcription.Option{
		transcription.WithWorkDir(a.Cfg.Service.WorkDir),
		transcription.WithDefaultMethod(stt.Method(a.Cfg.Models.DefaultMethod)),
		transcription.WithPublisher(a.publisher),
	}
	for _, b := range backends {
		opts = append(opts, transcription.WithTranscriber(b.Method, b.Transcriber))
	}
	svc := transcription.New(a.extractor, opts...)

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		releaseAll(backends, startLogger)
		return ErrNotStarted
	}
	a.backends = backends
	a.service = svc
	a.mu.Unlock()

	a.ready.Store(true)
	a.health.SetServing(true)
	metrics.DefaultMetrics.SetReady(true)

	startLogger.Info().
		Strs("methods", svc.Methods()).
		Str("workDir", a.Cfg.Service.WorkDir).
		Msg("Models loaded, service ready")
	return nil
}

// CheckVoskModel fails unless path is an existing directory.
func CheckVoskModel(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: Vosk model directory %q is missing, download a model from %s and unpack it there",
			ErrModelNotFound, path, VoskModelsURL)
	}
	return nil
}

// Service returns the transcription service built by Start.
func (a *Application) Service() (*transcription.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.service == nil {
		return nil, ErrNotStarted
	}
	return a.service, nil
}

// Ready reports whether the service accepts uploads.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Health returns the gRPC health reporter.
func (a *Application) Health() *grpcapi.Health {
	return a.health
}

// Shutdown releases model handles, kills ffmpeg processes that are still
// running and closes the publisher. It does not wait for in-flight
// requests, which may fail once their backend is released.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().Str("method", "Shutdown").Logger()
	shutdownLogger.Info().Msg("Media transcription service shutting down")

	a.ready.Store(false)
	a.health.Shutdown()
	metrics.DefaultMetrics.SetReady(false)

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	backends := a.backends
	a.backends = nil
	a.mu.Unlock()

	releaseAll(backends, shutdownLogger)

	if n := a.extractor.TerminateAll(); n > 0 {
		shutdownLogger.Warn().Int("count", n).Msg("Terminated running ffmpeg processes")
	}

	if err := a.publisher.Close(); err != nil {
		shutdownLogger.Error().Err(err).Msg("Failed to close event publisher")
	}
}

func releaseAll(backends []Backend, logger zerolog.Logger) {
	for _, b := range backends {
		if b.Release == nil {
			continue
		}
		if err := b.Release(); err != nil {
			logger.Error().Err(err).Str("backend", b.Method.String()).Msg("Failed to release model")
		}
	}
}
