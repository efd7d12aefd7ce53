package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV is returned for files that are not RIFF/WAVE.
	ErrInvalidWAV = errors.New("not a valid WAV file")
	// ErrUnsupportedFormat is returned for WAV data other than 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// WAVReader reads a PCM WAV file in fixed-size frame chunks.
type WAVReader struct {
	f   *os.File
	dec *wav.Decoder
	buf *goaudio.IntBuffer
}

// OpenWAV opens path and positions the reader at the first PCM frame.
func OpenWAV(path string) (*WAVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%s: %w: format=%d bitDepth=%d", path, ErrUnsupportedFormat, dec.WavAudioFormat, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &WAVReader{f: f, dec: dec}, nil
}

// SampleRate returns the frame rate declared in the header.
func (r *WAVReader) SampleRate() int {
	return int(r.dec.SampleRate)
}

// Channels returns the number of interleaved channels.
func (r *WAVReader) Channels() int {
	return int(r.dec.NumChans)
}

// ReadChunk returns up to frames frames as little-endian 16-bit PCM.
// It returns io.EOF once the data chunk is exhausted.
func (r *WAVReader) ReadChunk(frames int) ([]byte, error) {
	n := frames * r.Channels()
	if r.buf == nil || len(r.buf.Data) != n {
		r.buf = &goaudio.IntBuffer{
			Format:         r.dec.Format(),
			Data:           make([]int, n),
			SourceBitDepth: 16,
		}
	}

	read, err := r.dec.PCMBuffer(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if read == 0 {
		return nil, io.EOF
	}
	return EncodePCM16(r.buf.Data[:read]), nil
}

// Close releases the underlying file.
func (r *WAVReader) Close() error {
	return r.f.Close()
}

// EncodePCM16 packs samples as little-endian signed 16-bit integers.
func EncodePCM16(samples []int) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}

// ReadSamples decodes a whole 16-bit PCM WAV file into mono float32
// samples in [-1, 1). Multi-channel audio is averaged down to one channel.
func ReadSamples(path string) ([]float32, int, error) {
	r, err := OpenWAV(path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	buf, err := r.dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	channels := r.Channels()
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float32(sum) / float32(channels) / 32768
	}
	return samples, r.SampleRate(), nil
}
