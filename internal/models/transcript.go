// Package models defines the response bodies and events produced by the
// transcription endpoint.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried in the eventType field and the Kafka header.
const (
	EventTypeCompleted = "media.transcription.completed"
	EventTypeFailed    = "media.transcription.failed"
)

// TranscriptionResult is the success body of POST /transcribe/.
type TranscriptionResult struct {
	Transcription string `json:"transcription"`
}

// ErrorResult is the failure body of POST /transcribe/.
type ErrorResult struct {
	Error string `json:"error"`
}

// TranscriptionCompleted is published after a successful extraction.
type TranscriptionCompleted struct {
	EventID    string `json:"eventId"`
	EventType  string `json:"eventType"`
	RequestID  string `json:"requestId"`
	Timestamp  int64  `json:"timestamp"`
	Filename   string `json:"filename"`
	Category   string `json:"category"`
	Method     string `json:"method,omitempty"`
	Text       string `json:"text"`
	DurationMs int64  `json:"durationMs"`
}

// TranscriptionFailed is published when a request ends with an error body.
type TranscriptionFailed struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
	Filename  string `json:"filename"`
	Category  string `json:"category"`
	Method    string `json:"method,omitempty"`
	ErrorKind string `json:"errorKind"`
	Error     string `json:"error"`
}

// NewCompleted builds a completed event stamped with a fresh event ID.
func NewCompleted(requestID, filename, category, method, text string, took time.Duration) TranscriptionCompleted {
	return TranscriptionCompleted{
		EventID:    uuid.NewString(),
		EventType:  EventTypeCompleted,
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Filename:   filename,
		Category:   category,
		Method:     method,
		Text:       text,
		DurationMs: took.Milliseconds(),
	}
}

// NewFailed builds a failed event stamped with a fresh event ID.
func NewFailed(requestID, filename, category, method, kind, msg string) TranscriptionFailed {
	return TranscriptionFailed{
		EventID:   uuid.NewString(),
		EventType: EventTypeFailed,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Filename:  filename,
		Category:  category,
		Method:    method,
		ErrorKind: kind,
		Error:     msg,
	}
}
