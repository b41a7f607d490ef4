// Package reconcile enforces which store is written for every event of an
// open session. Content flows Document -> Registry mirror -> persistence;
// external producers write the Document directly; the Registry never writes
// the Document except through a session load.
//
// An Engine is single-writer: its owner must serialize calls to Handle.
package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleOperation indicates a guarded write whose target was edited
	// after the operation started. It is reported as Applied=false.
	ErrStaleOperation = errors.New("target changed since operation start")

	// ErrUnknownCellTarget indicates an event for a cell that is not in the
	// document or has no open accumulator.
	ErrUnknownCellTarget = errors.New("event targets an unknown cell")

	// ErrSessionMismatch indicates an event for a session other than the
	// active one.
	ErrSessionMismatch = errors.New("event for inactive session")

	// ErrNoSession indicates an event before any session was loaded.
	ErrNoSession = errors.New("no session loaded")
)

// StreamFailure is a remote producer error recorded against a cell.
type StreamFailure struct {
	CellID  string
	Message string
}

func (e *StreamFailure) Error() string {
	return fmt.Sprintf("stream for cell %s failed: %s", e.CellID, e.Message)
}

// PersistenceWriteFailure wraps a failed forced write. The document keeps
// the written content.
type PersistenceWriteFailure struct {
	SessionID string
	Err       error
}

func (e *PersistenceWriteFailure) Error() string {
	return fmt.Sprintf("persisting session %s: %v", e.SessionID, e.Err)
}

func (e *PersistenceWriteFailure) Unwrap() error {
	return e.Err
}
