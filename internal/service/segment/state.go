// Package segment tracks the transcript segments produced by a streaming
// recognizer during one transcription request.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State is where a segment is in its lifecycle.
type State int

const (
	// StateOpen accepts partial results and at most one final result.
	StateOpen State = iota
	// StateFinalized has its final text and accepts nothing else.
	StateFinalized
	// StateClosed ended normally.
	StateClosed
	// StateDropped was abandoned after an error; its text is never used.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFinalized:
		return "FINALIZED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal reports whether no further transition other than Reset is possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

var (
	ErrSegmentClosed     = errors.New("segment is closed")
	ErrAlreadyFinalized  = errors.New("segment already finalized")
	ErrPartialAfterFinal = errors.New("partial result after final")
)

// Lifecycle is the state machine for the current segment of a stream.
// It is safe for concurrent use because streaming recognizers may deliver
// results from a receive goroutine.
//
//	OPEN ──Finalize──> FINALIZED ──Close──> CLOSED
//	  │                    │
//	  └───────Drop─────────┴──> DROPPED
type Lifecycle struct {
	mu        sync.RWMutex
	requestID string
	index     int
	state     State
}

// NewLifecycle opens the first segment of a request.
func NewLifecycle(requestID string) *Lifecycle {
	return &Lifecycle{requestID: requestID, index: 1, state: StateOpen}
}

// ID returns "<requestID>-seg-<n>", where n counts segments within the
// request starting at 1.
func (l *Lifecycle) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.requestID == "" {
		return fmt.Sprintf("seg-%d", l.index)
	}
	return fmt.Sprintf("%s-seg-%d", l.requestID, l.index)
}

// Index returns the 1-based number of the current segment.
func (l *Lifecycle) Index() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsDropped reports whether the segment was abandoned.
func (l *Lifecycle) IsDropped() bool {
	return l.State() == StateDropped
}

// AcceptPartial checks that a partial result may be recorded.
func (l *Lifecycle) AcceptPartial() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateOpen:
		return nil
	case StateFinalized:
		return ErrPartialAfterFinal
	default:
		return ErrSegmentClosed
	}
}

// Finalize moves an open segment to StateFinalized.
func (l *Lifecycle) Finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateFinalized
		return nil
	case StateFinalized:
		return ErrAlreadyFinalized
	default:
		return ErrSegmentClosed
	}
}

// Close ends the segment. A dropped segment stays dropped.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDropped {
		l.state = StateClosed
	}
}

// Drop abandons the segment. It returns false if the segment had already
// reached a terminal state.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}

// Reset opens the next segment of the same request.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index++
	l.state = StateOpen
}
