package transcription

import (
	"errors"
	"strings"

	"media-transcription-service/internal/service/ffmpeg"
)

// Kind classifies a failed request.
type Kind string

const (
	KindUnsupportedType   Kind = "unsupported_type"
	KindUnsupportedMethod Kind = "unsupported_method"
	KindStorage           Kind = "storage"
	KindToolFailure       Kind = "tool_failure"
	KindParseFailure      Kind = "parse_failure"
)

// MsgUnsupportedType is the exact message returned for rejected extensions.
const MsgUnsupportedType = "Unsupported file type"

// Error is returned by Service.Process. Msg is the text placed in the
// response body.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func errUnsupportedType() *Error {
	return &Error{Kind: KindUnsupportedType, Msg: MsgUnsupportedType}
}

func errUnsupportedMethod(method string) *Error {
	return &Error{Kind: KindUnsupportedMethod, Msg: "Unsupported transcription method: " + method}
}

func errStorage(err error) *Error {
	return &Error{Kind: KindStorage, Msg: err.Error(), Err: err}
}

// errTool reports a failed ffmpeg run with its stderr. A killed process
// often writes nothing, so the exit status stands in for empty stderr.
func errTool(err error) *Error {
	stderr := err.Error()
	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) && strings.TrimSpace(exitErr.Stderr) != "" {
		stderr = exitErr.Stderr
	} else if exitErr != nil && exitErr.Err != nil {
		stderr = exitErr.Err.Error()
	}
	return &Error{
		Kind: KindToolFailure,
		Msg:  "FFmpeg failed: " + stderr,
		Err:  err,
	}
}

func errParse(err error) *Error {
	return &Error{Kind: KindParseFailure, Msg: err.Error(), Err: err}
}
