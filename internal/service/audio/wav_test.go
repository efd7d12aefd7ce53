package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, samples []int, rate, chans int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestOpenWAV_ReadChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int, 10)
	for i := range samples {
		samples[i] = i * 100
	}
	writeWAV(t, path, samples, 16000, 1)

	r, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if r.SampleRate() != 16000 {
		t.Errorf("expected 16000 Hz, got %d", r.SampleRate())
	}
	if r.Channels() != 1 {
		t.Errorf("expected mono, got %d channels", r.Channels())
	}

	var sizes []int
	var all []byte
	for {
		chunk, err := r.ReadChunk(4)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read chunk: %v", err)
		}
		sizes = append(sizes, len(chunk))
		all = append(all, chunk...)
	}

	// 10 frames in chunks of 4: 4, 4, 2 frames of 2 bytes each
	want := []int{8, 8, 4}
	if len(sizes) != len(want) {
		t.Fatalf("expected chunk sizes %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk %d: expected %d bytes, got %d", i, want[i], sizes[i])
		}
	}
	if string(all) != string(EncodePCM16(samples)) {
		t.Error("chunk bytes do not match the encoded samples")
	}
}

func TestOpenWAV_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenWAV(path); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("expected ErrInvalidWAV, got %v", err)
	}
}

func TestOpenWAV_Missing(t *testing.T) {
	if _, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestEncodePCM16(t *testing.T) {
	got := EncodePCM16([]int{1, -1, 256})
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}
	if string(got) != string(want) {
		t.Errorf("EncodePCM16 = %v, want %v", got, want)
	}
}

func TestReadSamples_DownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// two frames: (16384, 0) and (-16384, -16384)
	writeWAV(t, path, []int{16384, 0, -16384, -16384}, 16000, 2)

	samples, rate, err := ReadSamples(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected 16000 Hz, got %d", rate)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 mono samples, got %d", len(samples))
	}
	if samples[0] != 0.25 || samples[1] != -0.5 {
		t.Errorf("unexpected samples %v", samples)
	}
}
