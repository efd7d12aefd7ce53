// Package transcription turns one uploaded file into text. It owns the
// request-scoped temp files and dispatches by category to an audio pipeline
// or a document extractor.
package transcription

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-transcription-service/internal/models"
	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/observability/metrics"
	"media-transcription-service/internal/service/extract"
	"media-transcription-service/internal/service/stt"
)

// AudioExtractor writes the audio track of a video file as a WAV file.
type AudioExtractor interface {
	Extract(ctx context.Context, src, dst string) error
}

// EventPublisher receives one outcome event per processed upload.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, key string, event any) error
	PublishFailed(ctx context.Context, key string, event any) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Service processes uploads. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	workDir       string
	defaultMethod stt.Method
	audio         AudioExtractor
	transcribers  map[stt.Method]stt.Transcriber
	documents     map[Category]extract.Extractor
	publisher     EventPublisher
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWorkDir sets the directory temp files are written to.
func WithWorkDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.workDir = dir
		}
	}
}

// WithTranscriber registers the backend used for method.
func WithTranscriber(method stt.Method, t stt.Transcriber) Option {
	return func(s *Service) {
		if t != nil {
			s.transcribers[method] = t
		}
	}
}

// WithDefaultMethod sets the method used when a request names none.
func WithDefaultMethod(m stt.Method) Option {
	return func(s *Service) {
		if m != "" {
			s.defaultMethod = m
		}
	}
}

// WithDocumentExtractor overrides the extractor for a document category.
func WithDocumentExtractor(c Category, e extract.Extractor) Option {
	return func(s *Service) {
		s.documents[c] = e
	}
}

// WithPublisher sets where outcome events are sent.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// New creates a service that extracts video audio with audio.
func New(audio AudioExtractor, opts ...Option) *Service {
	s := &Service{
		workDir:       ".",
		defaultMethod: stt.DefaultMethod,
		audio:         audio,
		transcribers:  make(map[stt.Method]stt.Transcriber),
		documents: map[Category]extract.Extractor{
			CategoryDOCX: extract.DOCX{},
			CategoryPPTX: extract.PPTX{},
			CategoryPDF:  extract.PDF{},
		},
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("transcription"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Methods returns the registered transcription methods in name order.
func (s *Service) Methods() []string {
	out := make([]string, 0, len(s.transcribers))
	for m := range s.transcribers {
		out = append(out, m.String())
	}
	sort.Strings(out)
	return out
}

// TempPath is where an upload named filename is stored while it is processed.
// Concurrent uploads with the same name share this path.
func TempPath(workDir, filename string) string {
	return filepath.Join(workDir, "temp_"+filepath.Base(filename))
}

// AudioPath is the WAV file derived from a temp video file.
func AudioPath(tempPath string) string {
	return strings.TrimSuffix(tempPath, filepath.Ext(tempPath)) + ".wav"
}

// Process extracts the text of up. method selects the speech backend for
// video uploads; an empty method selects the default method. Every failure
// is returned as *Error. Temp files created for the request are removed
// before Process returns.
func (s *Service) Process(ctx context.Context, up Upload, method string) (string, error) {
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}

	start := time.Now()
	category := Classify(up.Filename)
	s.metrics.RecordUploadStart()

	text, usedMethod, err := s.process(ctx, up, category, method)
	took := time.Since(start)

	logger := logging.WithRequest(requestID, up.Filename).With().
		Str("component", "transcription").
		Stringer("category", category).
		Str("method", usedMethod).
		Dur("duration", took).
		Logger()

	pubCtx := context.WithoutCancel(ctx)
	if err != nil {
		kind := KindOf(err)
		s.metrics.RecordUploadEnd(category.String(), "error")
		s.metrics.RecordExtractionError(string(kind))
		logger.Warn().Str("errorKind", string(kind)).Err(err).Msg("transcription failed")
		s.publishFailed(pubCtx, requestID, models.NewFailed(requestID, up.Filename, category.String(), usedMethod, string(kind), err.Error()))
		return "", err
	}

	s.metrics.RecordUploadEnd(category.String(), "ok")
	s.metrics.RecordExtraction(category.String(), usedMethod, took.Seconds())
	logger.Info().Int("chars", len(text)).Msg("transcription completed")
	s.publishCompleted(pubCtx, requestID, models.NewCompleted(requestID, up.Filename, category.String(), usedMethod, text, took))
	return text, nil
}

func (s *Service) process(ctx context.Context, up Upload, category Category, method string) (string, string, error) {
	if category == CategoryUnsupported {
		return "", "", errUnsupportedType()
	}

	var tr stt.Transcriber
	usedMethod := ""
	if category == CategoryMedia {
		if method == "" {
			method = s.defaultMethod.String()
		}
		m, ok := stt.ParseMethod(method)
		usedMethod = m.String()
		if ok {
			tr = s.transcribers[m]
		}
		if tr == nil {
			return "", usedMethod, errUnsupportedMethod(usedMethod)
		}
	}

	tempPath := TempPath(s.workDir, up.Filename)
	defer s.remove(tempPath)

	if err := s.persist(tempPath, up.Body); err != nil {
		return "", usedMethod, errStorage(err)
	}

	if category != CategoryMedia {
		text, err := s.documents[category].Extract(ctx, tempPath)
		if err != nil {
			return "", usedMethod, errParse(err)
		}
		return text, usedMethod, nil
	}

	audioPath := AudioPath(tempPath)
	defer s.remove(audioPath)

	if err := s.audio.Extract(ctx, tempPath, audioPath); err != nil {
		return "", usedMethod, errTool(err)
	}

	text, err := tr.Transcribe(ctx, audioPath)
	if err != nil {
		return "", usedMethod, errParse(err)
	}
	return text, usedMethod, nil
}

func (s *Service) persist(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	s.metrics.RecordUploadBytes(n)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// remove deletes path if it exists. Failures are logged, never returned.
func (s *Service) remove(path string) {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	s.metrics.RecordTempFileRemoved(err)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

func (s *Service) publishCompleted(ctx context.Context, key string, ev models.TranscriptionCompleted) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCompleted(ctx, key, ev); err != nil {
		s.logger.Error().Err(err).Str("requestId", key).Msg("failed to publish completed event")
	}
}

func (s *Service) publishFailed(ctx context.Context, key string, ev models.TranscriptionFailed) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFailed(ctx, key, ev); err != nil {
		s.logger.Error().Err(err).Str("requestId", key).Msg("failed to publish failed event")
	}
}
