package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	file := flag.String("file", "", "Path to a video or document to upload")
	server := flag.String("server", "http://localhost:8000", "Transcription service base URL")
	method := flag.String("method", "", "Transcription method for videos (whisper, vosk, google)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Request timeout")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open file: %v", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(*file))
	if err != nil {
		log.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		log.Fatalf("failed to read file: %v", err)
	}
	if *method != "" {
		mw.WriteField("method", *method)
	}
	if err := mw.Close(); err != nil {
		log.Fatalf("failed to finish form: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, *server+"/transcribe/", &body)
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Printf("Uploading %s (%d bytes)", filepath.Base(*file), body.Len())
	start := time.Now()

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatalf("invalid response (status %d): %v", resp.StatusCode, err)
	}

	log.Printf("Status %d in %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))
	if msg, ok := result["error"]; ok {
		log.Fatalf("error: %s", msg)
	}
	os.Stdout.WriteString(result["transcription"] + "\n")
}
