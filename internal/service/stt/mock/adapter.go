// Package mock provides a scripted streaming recognizer for tests and local
// runs without model files. Each audio chunk advances the script by one step:
// partials are delivered first, then the final text and the utterance
// boundary. Results are delivered synchronously from SendAudio.
package mock

import (
	"context"
	"errors"
	"sync"

	"media-transcription-service/internal/service/stt"
)

// ErrInjected is the error reported by FailAfter scripts.
var ErrInjected = errors.New("mock recognizer failure")

// Utterance is one scripted segment.
type Utterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances is used when a factory is built with no script.
var DefaultUtterances = []Utterance{
	{Partials: []string{"the quick", "the quick brown"}, Final: "the quick brown fox", Confidence: 0.94},
	{Partials: []string{"jumps"}, Final: " jumps over", Confidence: 0.91},
	{Partials: []string{"the lazy"}, Final: " the lazy dog", Confidence: 0.97},
}

// Adapter implements stt.Adapter from a fixed script.
type Adapter struct {
	mu         sync.Mutex
	cb         stt.Callback
	script     []Utterance
	utterance  int
	step       int
	chunks     int
	failAfter  int
	sampleRate int
	closed     bool
}

// New creates an adapter that plays script once and then stays silent.
func New(script []Utterance) *Adapter {
	return &Adapter{script: script}
}

// Start registers the callback.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}
	a.chunks++

	if a.failAfter > 0 && a.chunks >= a.failAfter {
		a.cb.OnError(ErrInjected)
		return nil
	}
	if a.utterance >= len(a.script) {
		return nil
	}

	utt := a.script[a.utterance]
	if a.step < len(utt.Partials) {
		a.cb.OnPartial(utt.Partials[a.step])
		a.step++
		return nil
	}

	a.cb.OnFinal(utt.Final, utt.Confidence)
	a.cb.OnEndOfUtterance()
	a.utterance++
	a.step = 0
	return nil
}

// Close ends the session. A segment still in progress is not finalized.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Chunks returns how many audio chunks were received.
func (a *Adapter) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}

// Closed reports whether Close was called.
func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// SampleRate returns the rate the adapter was opened with by a Factory.
func (a *Adapter) SampleRate() int {
	return a.sampleRate
}

// Factory implements stt.StreamFactory with scripted adapters.
type Factory struct {
	Script []Utterance
	// FailAfter makes each adapter report ErrInjected on that chunk. Zero disables it.
	FailAfter int
	// OpenErr is returned by NewStream when set.
	OpenErr error

	mu     sync.Mutex
	opened []*Adapter
}

// NewStream opens a scripted adapter.
func (f *Factory) NewStream(ctx context.Context, sampleRateHz int) (stt.Adapter, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	script := f.Script
	if script == nil {
		script = DefaultUtterances
	}
	a := New(script)
	a.failAfter = f.FailAfter
	a.sampleRate = sampleRateHz

	f.mu.Lock()
	f.opened = append(f.opened, a)
	f.mu.Unlock()
	return a, nil
}

// Opened returns every adapter created so far.
func (f *Factory) Opened() []*Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Adapter(nil), f.opened...)
}
