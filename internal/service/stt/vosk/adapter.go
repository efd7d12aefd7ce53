// Package vosk streams audio through an offline Kaldi recognizer.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"media-transcription-service/internal/service/stt"
)

var (
	// ErrClosed is returned by NewStream after the model was released.
	ErrClosed = errors.New("vosk model released")
	// ErrRecognizer is reported when the recognizer rejects a chunk.
	ErrRecognizer = errors.New("vosk recognizer failed")
)

// Model is a loaded Vosk model shared by all requests.
type Model struct {
	mu    sync.RWMutex
	model *vosk.VoskModel
}

// Load loads the model directory at path.
func Load(path string) (*Model, error) {
	vosk.SetLogLevel(-1)
	m, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %q: %w", path, err)
	}
	return &Model{model: m}, nil
}

// NewStream creates a recognizer for audio at sampleRateHz.
func (m *Model) NewStream(ctx context.Context, sampleRateHz int) (stt.Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.model == nil {
		return nil, ErrClosed
	}
	rec, err := vosk.NewRecognizer(m.model, float64(sampleRateHz))
	if err != nil {
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	return &Adapter{rec: rec}, nil
}

// Close frees the model. Recognizers already created keep their own
// reference and stay usable until they are closed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

type result struct {
	Text string `json:"text"`
}

type partialResult struct {
	Partial string `json:"partial"`
}

// Adapter implements stt.Adapter over one Vosk recognizer. Results are
// delivered synchronously from SendAudio.
type Adapter struct {
	mu  sync.Mutex
	rec *vosk.VoskRecognizer
	cb  stt.Callback
}

// Start registers the callback.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.cb = cb
	return nil
}

// SendAudio feeds one chunk. A completed utterance is reported through
// OnFinal followed by OnEndOfUtterance.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rec == nil {
		return ErrClosed
	}

	switch a.rec.AcceptWaveform(audio) {
	case 1:
		var r result
		if err := json.Unmarshal([]byte(a.rec.Result()), &r); err != nil {
			a.cb.OnError(fmt.Errorf("decode vosk result: %w", err))
			return nil
		}
		a.cb.OnFinal(r.Text, 1)
		a.cb.OnEndOfUtterance()
	case 0:
		var p partialResult
		if err := json.Unmarshal([]byte(a.rec.PartialResult()), &p); err == nil && p.Partial != "" {
			a.cb.OnPartial(p.Partial)
		}
	default:
		a.cb.OnError(ErrRecognizer)
	}
	return nil
}

// Close frees the recognizer. Text not yet finalized is discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rec != nil {
		a.rec.Free()
		a.rec = nil
	}
	return nil
}
