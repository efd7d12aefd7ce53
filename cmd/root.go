package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"media-transcription-service/internal/config"
	"media-transcription-service/internal/observability/logging"
)

var (
	cfgFile string
	cfg     *config.Configuration
)

var rootCmd = &cobra.Command{
	Use:   "media-transcription-service",
	Short: "Extract text from uploaded videos and documents",
	Long: `media-transcription-service accepts video (mp4, mkv, avi) and document
(docx, pptx, pdf) uploads and returns their text.

Videos are converted to 16 kHz mono WAV with ffmpeg and transcribed with
whisper (default), vosk or, when enabled, Google Cloud Speech.

Example:
  media-transcription-service serve
  media-transcription-service extract --file lecture.mp4 --method vosk`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: runServe,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $CONFIG_FILE)")
}

func initConfig() error {
	if cfgFile == "" {
		cfg = config.Load()
	} else {
		var err error
		cfg, err = config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
	}

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	return nil
}
