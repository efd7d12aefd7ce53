// Package backends loads the speech models used in production. It links
// against whisper.cpp and libvosk.
package backends

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"media-transcription-service/internal/app"
	"media-transcription-service/internal/config"
	"media-transcription-service/internal/service/audio"
	"media-transcription-service/internal/service/stt"
	"media-transcription-service/internal/service/stt/google"
	"media-transcription-service/internal/service/stt/stream"
	"media-transcription-service/internal/service/stt/vosk"
	"media-transcription-service/internal/service/stt/whisper"
)

// Loader implements app.ModelLoader with whisper.cpp, Vosk and, when
// enabled, Google Cloud Speech.
type Loader struct{}

// Load loads every configured model. On error, models already loaded are
// released before returning.
func (Loader) Load(ctx context.Context, cfg *config.Configuration) (loaded []app.Backend, err error) {
	defer func() {
		if err != nil {
			for _, b := range loaded {
				b.Release()
			}
			loaded = nil
		}
	}()

	limits := audio.Limits{
		MaxAudioBytes: cfg.StreamLimits.MaxAudioBytes,
		MaxDuration:   cfg.StreamLimits.MaxDuration,
	}
	streamOpts := []stream.Option{
		stream.WithChunkFrames(cfg.Media.ChunkFrames),
		stream.WithLimits(limits),
	}

	w, err := whisper.Load(cfg.Models.WhisperModelPath, cfg.Models.WhisperLanguage)
	if err != nil {
		return loaded, err
	}
	loaded = append(loaded, app.Backend{Method: stt.MethodWhisper, Transcriber: w, Release: w.Close})
	log.Info().Str("path", cfg.Models.WhisperModelPath).Msg("whisper model loaded")

	v, err := vosk.Load(cfg.Models.VoskModelPath)
	if err != nil {
		return loaded, err
	}
	loaded = append(loaded, app.Backend{
		Method:      stt.MethodVosk,
		Transcriber: stream.New(stt.MethodVosk, v, streamOpts...),
		Release:     v.Close,
	})
	log.Info().Str("path", cfg.Models.VoskModelPath).Msg("vosk model loaded")

	if !cfg.STT.GoogleEnabled {
		return loaded, nil
	}

	g, err := google.NewClient(ctx, google.Config{
		LanguageCode:    cfg.STT.LanguageCode,
		SampleRateHz:    cfg.Media.SampleRateHz,
		InterimResults:  cfg.STT.InterimResults,
		AudioEncoding:   cfg.STT.AudioEncoding,
		CredentialsFile: cfg.STT.CredentialsFile,
	})
	if err != nil {
		return loaded, fmt.Errorf("create google speech client: %w", err)
	}
	loaded = append(loaded, app.Backend{
		Method:      stt.MethodGoogle,
		Transcriber: stream.New(stt.MethodGoogle, g, streamOpts...),
		Release:     g.Close,
	})
	log.Info().Str("language", cfg.STT.LanguageCode).Msg("google speech client ready")

	return loaded, nil
}
