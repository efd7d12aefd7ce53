// Package stt defines the contracts shared by the speech-to-text backends.
package stt

import "context"

// Method names a transcription backend.
type Method string

const (
	MethodWhisper Method = "whisper"
	MethodVosk    Method = "vosk"
	MethodGoogle  Method = "google"
)

// DefaultMethod is used when a request does not name one.
const DefaultMethod = MethodWhisper

// String returns the wire name of the method.
func (m Method) String() string { return string(m) }

// ParseMethod maps a request value to a Method. An empty value selects
// DefaultMethod; unknown values report ok=false.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case "":
		return DefaultMethod, true
	case MethodWhisper, MethodVosk, MethodGoogle:
		return Method(s), true
	default:
		return Method(s), false
	}
}

// Transcriber turns a mono PCM WAV file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Callback receives results from a streaming recognizer.
type Callback interface {
	// OnPartial is called with interim text that may still change.
	OnPartial(text string)

	// OnFinal is called when the recognizer commits a segment.
	OnFinal(text string, confidence float64)

	// OnEndOfUtterance marks the boundary after a committed segment.
	OnEndOfUtterance()

	// OnError is called when recognition fails.
	OnError(err error)
}

// Adapter is one streaming recognition session.
type Adapter interface {
	// Start opens the session and registers the callback receiver.
	Start(ctx context.Context, cb Callback) error

	// SendAudio feeds little-endian 16-bit PCM bytes to the recognizer.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session. Results still in flight are delivered
	// before Close returns.
	Close() error
}

// StreamFactory opens a new streaming session for one audio file.
type StreamFactory interface {
	NewStream(ctx context.Context, sampleRateHz int) (Adapter, error)
}
