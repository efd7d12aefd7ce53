package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"media-transcription-service/internal/observability/metrics"
)

// DefaultSampleRate is the rate every downstream recognizer expects.
const DefaultSampleRate = 16000

// Extractor turns a video file into a mono PCM WAV file.
type Extractor struct {
	ffmpegPath string
	sampleRate int
	runner     CommandRunner
	metrics    *metrics.Metrics
}

// ExtractorOption is a functional option for configuring Extractor
type ExtractorOption func(*Extractor)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) ExtractorOption {
	return func(e *Extractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithSampleRate overrides the output sample rate.
func WithSampleRate(hz int) ExtractorOption {
	return func(e *Extractor) {
		if hz > 0 {
			e.sampleRate = hz
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) ExtractorOption {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// NewExtractor creates a new ffmpeg-based audio extractor
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		ffmpegPath: "ffmpeg",
		sampleRate: DefaultSampleRate,
		runner:     NewExecCommandRunner(),
		metrics:    metrics.DefaultMetrics,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Args returns the ffmpeg argument list for converting src into dst.
func (e *Extractor) Args(src, dst string) []string {
	return []string{
		"-i", src,
		"-ac", "1", // mono
		"-ar", strconv.Itoa(e.sampleRate),
		dst,
		"-y", // overwrite output
	}
}

// Extract writes a mono WAV copy of src's audio track to dst.
// A non-zero exit surfaces as *ExitError.
func (e *Extractor) Extract(ctx context.Context, src, dst string) error {
	start := time.Now()
	err := e.runner.Run(ctx, e.ffmpegPath, e.Args(src, dst)...)
	e.metrics.RecordFFmpegRun(err, time.Since(start).Seconds())

	if err != nil {
		log.Debug().Err(err).Str("src", src).Msg("ffmpeg audio extraction failed")
		return err
	}
	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (e *Extractor) VerifyInstalled(ctx context.Context) error {
	if _, err := e.runner.Output(ctx, e.ffmpegPath, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// TerminateAll kills processes still running under the extractor's runner.
// Runners that do not track processes report zero.
func (e *Extractor) TerminateAll() int {
	t, ok := e.runner.(interface{ TerminateAll() int })
	if !ok {
		return 0
	}
	n := t.TerminateAll()
	for i := 0; i < n; i++ {
		e.metrics.RecordSubprocessTerminated()
	}
	return n
}
