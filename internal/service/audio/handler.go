// Package audio reads extracted WAV audio and collects the text a streaming
// recognizer produces for it.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/observability/metrics"
	"media-transcription-service/internal/service/segment"
	"media-transcription-service/internal/service/stt"
)

// ErrLimitExceeded is returned by SendAudio once a stream limit is hit.
var ErrLimitExceeded = errors.New("stream limit exceeded")

// Limits bounds a single streaming transcription. Zero disables a limit.
type Limits struct {
	MaxAudioBytes int64         // total PCM bytes fed to the recognizer
	MaxDuration   time.Duration // wall time since Start
	MaxPartials   int           // partial results within one segment
}

// DefaultLimits returns no limits at all.
func DefaultLimits() Limits {
	return Limits{}
}

// Handler drives one stt.Adapter session and implements stt.Callback.
// Finalized segments are appended to the transcript in arrival order with
// no separator; partial results are only counted.
type Handler struct {
	adapter   stt.Adapter
	method    string
	requestID string
	lifecycle *segment.Lifecycle
	limits    Limits
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu           sync.RWMutex
	startTime    time.Time
	audioBytes   int64
	partialCount int
	segments     int
	transcript   strings.Builder
	err          error
}

// NewHandler creates a handler with no limits.
func NewHandler(adapter stt.Adapter, method, requestID string) *Handler {
	return NewHandlerWithLimits(adapter, method, requestID, DefaultLimits())
}

// NewHandlerWithLimits creates a handler that aborts the stream when a limit is exceeded.
func NewHandlerWithLimits(adapter stt.Adapter, method, requestID string, limits Limits) *Handler {
	return &Handler{
		adapter:   adapter,
		method:    method,
		requestID: requestID,
		lifecycle: segment.NewLifecycle(requestID),
		limits:    limits,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithStream(requestID, method),
		startTime: time.Now(),
	}
}

// Start opens the recognizer session with this handler as the callback.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	h.startTime = time.Now()
	h.mu.Unlock()
	return h.adapter.Start(ctx, h)
}

// SendAudio forwards one PCM chunk to the recognizer. It fails without
// sending if the recognizer already reported an error or a limit is exceeded.
func (h *Handler) SendAudio(ctx context.Context, chunk []byte) error {
	h.mu.Lock()
	if h.err != nil {
		err := h.err
		h.mu.Unlock()
		return err
	}
	h.audioBytes += int64(len(chunk))
	total := h.audioBytes
	elapsed := time.Since(h.startTime)
	h.mu.Unlock()

	if h.limits.MaxAudioBytes > 0 && total > h.limits.MaxAudioBytes {
		return h.exceed("audio_bytes", fmt.Sprintf("max audio bytes exceeded: %d > %d", total, h.limits.MaxAudioBytes))
	}
	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		return h.exceed("duration", fmt.Sprintf("max duration exceeded: %v > %v", elapsed.Round(time.Millisecond), h.limits.MaxDuration))
	}

	h.metrics.RecordStreamAudio(h.method, len(chunk))
	return h.adapter.SendAudio(ctx, chunk)
}

func (h *Handler) exceed(limitType, reason string) error {
	h.metrics.RecordLimitExceeded(limitType)
	h.DropSegment(reason)
	err := fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
	h.setErr(err)
	return err
}

// Close ends the recognizer session, then closes the current segment.
// Whatever the open segment held is discarded.
func (h *Handler) Close() error {
	err := h.adapter.Close()
	h.lifecycle.Close()
	return err
}

// Transcript returns the concatenated finalized text, or the first error
// reported during the session.
func (h *Handler) Transcript() (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil {
		return "", h.err
	}
	return h.transcript.String(), nil
}

// SegmentCount returns how many segments were finalized.
func (h *Handler) SegmentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.segments
}

// SegmentState returns the lifecycle state of the current segment.
func (h *Handler) SegmentState() segment.State {
	return h.lifecycle.State()
}

// OnPartial counts interim text for the open segment.
func (h *Handler) OnPartial(text string) {
	if err := h.lifecycle.AcceptPartial(); err != nil {
		h.logger.Debug().Err(err).Str("segmentId", h.lifecycle.ID()).Msg("partial ignored")
		return
	}

	h.mu.Lock()
	h.partialCount++
	count := h.partialCount
	h.mu.Unlock()

	if h.limits.MaxPartials > 0 && count > h.limits.MaxPartials {
		h.exceed("partials", fmt.Sprintf("max partials exceeded: %d > %d", count, h.limits.MaxPartials))
		return
	}
	h.metrics.RecordPartial(h.method)
}

// OnFinal appends the committed text of the open segment.
func (h *Handler) OnFinal(text string, confidence float64) {
	if err := h.lifecycle.Finalize(); err != nil {
		h.logger.Warn().Err(err).Str("segmentId", h.lifecycle.ID()).Msg("final ignored")
		return
	}

	h.mu.Lock()
	h.transcript.WriteString(text)
	h.segments++
	h.mu.Unlock()

	h.metrics.RecordSegment(h.method)
	h.logger.Debug().
		Str("segmentId", h.lifecycle.ID()).
		Float64("confidence", confidence).
		Int("chars", len(text)).
		Msg("segment finalized")
}

// OnEndOfUtterance closes the current segment and opens the next one.
func (h *Handler) OnEndOfUtterance() {
	h.lifecycle.Close()

	h.mu.Lock()
	h.partialCount = 0
	h.mu.Unlock()

	h.lifecycle.Reset()
}

// OnError drops the open segment and fails the session.
func (h *Handler) OnError(err error) {
	h.metrics.RecordSTTError(h.method)
	h.DropSegment(err.Error())
	h.setErr(err)
}

// DropSegment abandons the open segment without using its text.
// It returns false if the segment had already reached a terminal state.
func (h *Handler) DropSegment(reason string) bool {
	id := h.lifecycle.ID()
	prev := h.lifecycle.State()
	dropped := h.lifecycle.Drop()

	h.logger.Warn().
		Str("segmentId", id).
		Stringer("previousState", prev).
		Bool("dropped", dropped).
		Str("reason", reason).
		Msg("segment dropped")
	return dropped
}

func (h *Handler) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}
