// Package stream transcribes a WAV file by feeding fixed-size chunks to a
// streaming recognizer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/service/audio"
	"media-transcription-service/internal/service/stt"
)

// DefaultChunkFrames is the number of frames read per recognizer call.
const DefaultChunkFrames = 4000

// Transcriber implements stt.Transcriber on top of a stt.StreamFactory.
type Transcriber struct {
	method      stt.Method
	factory     stt.StreamFactory
	chunkFrames int
	limits      audio.Limits
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithChunkFrames sets how many frames are sent per chunk.
func WithChunkFrames(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.chunkFrames = n
		}
	}
}

// WithLimits bounds each stream.
func WithLimits(l audio.Limits) Option {
	return func(t *Transcriber) {
		t.limits = l
	}
}

// New creates a streaming transcriber for method.
func New(method stt.Method, factory stt.StreamFactory, opts ...Option) *Transcriber {
	t := &Transcriber{
		method:      method,
		factory:     factory,
		chunkFrames: DefaultChunkFrames,
		limits:      audio.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe streams audioPath through a new recognizer session and returns
// the finalized segments concatenated in order.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	r, err := audio.OpenWAV(audioPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	adapter, err := t.factory.NewStream(ctx, r.SampleRate())
	if err != nil {
		return "", fmt.Errorf("open %s stream: %w", t.method, err)
	}

	requestID := logging.RequestIDFromContext(ctx)
	h := audio.NewHandlerWithLimits(adapter, t.method.String(), requestID, t.limits)
	if err := h.Start(ctx); err != nil {
		adapter.Close()
		return "", fmt.Errorf("start %s stream: %w", t.method, err)
	}

	if err := t.pump(ctx, r, h); err != nil {
		h.Close()
		return "", err
	}

	closeErr := h.Close()
	text, err := h.Transcript()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", fmt.Errorf("close %s stream: %w", t.method, closeErr)
	}

	logger := logging.WithStream(requestID, t.method.String())
	logger.Debug().
		Int("segments", h.SegmentCount()).
		Msg("stream transcription complete")
	return text, nil
}

func (t *Transcriber) pump(ctx context.Context, r *audio.WAVReader, h *audio.Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := r.ReadChunk(t.chunkFrames)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}

		if err := h.SendAudio(ctx, chunk); err != nil {
			return err
		}
	}
}
