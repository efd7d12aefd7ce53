package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"media-transcription-service/internal/app"
	"media-transcription-service/internal/backends"
	"media-transcription-service/internal/models"
	"media-transcription-service/internal/service/transcription"
)

var (
	extractFile   string
	extractMethod string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from a local file",
	Long: `Run the upload pipeline on a local file and print the JSON result.

The file is copied to the work directory exactly as an upload would be, so
the same temp files are created and removed.

Example:
  media-transcription-service extract --file lecture.mp4
  media-transcription-service extract --file slides.pptx
  media-transcription-service extract --file interview.mkv --method vosk`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractFile, "file", "", "Path to the video or document (required)")
	extractCmd.Flags().StringVar(&extractMethod, "method", "", "Transcription method for videos: whisper, vosk or google")
	extractCmd.MarkFlagRequired("file")
}

func runExtract(cmd *cobra.Command, args []string) error {
	f, err := os.Open(extractFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	application := app.New(cfg, backends.Loader{})
	if err := application.Start(cmd.Context()); err != nil {
		return err
	}
	defer application.Shutdown()

	svc, err := application.Service()
	if err != nil {
		return err
	}

	upload := transcription.Upload{Filename: filepath.Base(extractFile), Body: f}
	text, procErr := svc.Process(cmd.Context(), upload, extractMethod)

	var result any = models.TranscriptionResult{Transcription: text}
	if procErr != nil {
		result = models.ErrorResult{Error: procErr.Error()}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return procErr
}
