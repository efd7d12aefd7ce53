// Package schema checks transcription events before they are published.
package schema

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"media-transcription-service/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate rejects events with missing identifiers or an unexpected type.
// Unknown event values are rejected as well.
func (v *Validator) Validate(event any) error {
	var err error
	switch e := event.(type) {
	case models.TranscriptionCompleted:
		err = v.validateCompleted(&e)
	case *models.TranscriptionCompleted:
		err = v.validateCompleted(e)
	case models.TranscriptionFailed:
		err = v.validateFailed(&e)
	case *models.TranscriptionFailed:
		err = v.validateFailed(e)
	default:
		err = fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
	if err != nil {
		log.Debug().Err(err).Msg("schema validation failed")
	}
	return err
}

func (v *Validator) validateCompleted(e *models.TranscriptionCompleted) error {
	if e.EventType != models.EventTypeCompleted {
		return fmt.Errorf("%w: eventType %q", ErrInvalidEvent, e.EventType)
	}
	return requireIDs(e.EventID, e.RequestID, e.Timestamp)
}

func (v *Validator) validateFailed(e *models.TranscriptionFailed) error {
	if e.EventType != models.EventTypeFailed {
		return fmt.Errorf("%w: eventType %q", ErrInvalidEvent, e.EventType)
	}
	if e.Error == "" {
		return fmt.Errorf("%w: missing error", ErrInvalidEvent)
	}
	return requireIDs(e.EventID, e.RequestID, e.Timestamp)
}

func requireIDs(eventID, requestID string, ts int64) error {
	switch {
	case eventID == "":
		return fmt.Errorf("%w: missing eventId", ErrInvalidEvent)
	case requestID == "":
		return fmt.Errorf("%w: missing requestId", ErrInvalidEvent)
	case ts <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
