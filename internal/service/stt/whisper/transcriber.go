// Package whisper transcribes whole WAV files with whisper.cpp.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/service/audio"
)

// ErrClosed is returned after the model has been released.
var ErrClosed = errors.New("whisper model released")

// Transcriber wraps one loaded whisper model. Decoding is serialized because
// contexts created from the same model share its decoder state.
type Transcriber struct {
	mu       sync.Mutex
	model    whisper.Model
	language string
}

// Load reads a ggml model file. The caller must call Close when done.
func Load(modelPath, language string) (*Transcriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}
	return &Transcriber{model: model, language: language}, nil
}

// Transcribe decodes audioPath and returns the trimmed transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	samples, rate, err := audio.ReadSamples(audioPath)
	if err != nil {
		return "", err
	}
	if rate != whisper.SampleRate {
		return "", fmt.Errorf("whisper needs %d Hz audio, got %d Hz", whisper.SampleRate, rate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model == nil {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}
	if t.language != "" && t.model.IsMultilingual() {
		if err := wctx.SetLanguage(t.language); err != nil {
			return "", fmt.Errorf("set whisper language %q: %w", t.language, err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var b strings.Builder
	segments := 0
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper next segment: %w", err)
		}
		b.WriteString(seg.Text)
		segments++
	}

	logger := logging.WithStream(logging.RequestIDFromContext(ctx), "whisper")
	logger.Debug().
		Int("segments", segments).
		Int("samples", len(samples)).
		Msg("whisper transcription complete")
	return strings.TrimSpace(b.String()), nil
}

// Close releases the model. Later calls to Transcribe return ErrClosed.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model == nil {
		return nil
	}
	err := t.model.Close()
	t.model = nil
	return err
}
