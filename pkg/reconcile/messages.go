package reconcile

import (
	"encoding/json"

	"ai-notebook-be/pkg/document"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/registry"
)

// Message is an inbound event. The set is closed.
type Message interface {
	Session() string
	message()
}

// LoadSession switches the engine to a session.
type LoadSession struct {
	SessionID string
	Cells     []notebook.Cell
}

// StreamStart opens an accumulator for a producer. Regenerate first removes
// the continuation cells a previous response split into.
type StreamStart struct {
	SessionID  string
	CellID     string
	Kind       registry.AccumulatorKind
	Regenerate bool
}

type StreamChunk struct {
	SessionID string
	CellID    string
	Text      string
}

// StreamComplete commits the accumulated text. FinalText, when set,
// replaces the accumulated text. Force skips the edited-since-start guard.
// Modifier names the transformation of a modifying producer; its result is
// recorded as a new active version.
type StreamComplete struct {
	SessionID string
	CellID    string
	FinalText *string
	Force     bool
	Modifier  string
}

type StreamError struct {
	SessionID string
	CellID    string
	Error     string
}

// ExternalInsert inserts captured cells after AfterID, or at the end.
type ExternalInsert struct {
	SessionID string
	AfterID   string
	Cells     []notebook.Cell
}

type ReorderConfirm struct {
	SessionID  string
	OrderedIDs []string
}

// UserInput carries caret placement, one key and typed text, applied in
// that order.
type UserInput struct {
	SessionID string
	Cursor    *document.Position
	Selection *document.Selection
	Key       *document.Key
	Text      string
}

// UserPaste carries exactly one clipboard flavour.
type UserPaste struct {
	SessionID string
	Fragment  *document.Fragment
	HTML      string
	Markdown  string
	Lexical   json.RawMessage
}

type UserEditCell struct {
	SessionID string
	CellID    string
	Content   string
}

type UserDeleteCell struct {
	SessionID string
	CellID    string
}

// UserConfigureCell replaces a cell's live-refresh configuration.
type UserConfigureCell struct {
	SessionID        string
	CellID           string
	ProcessingConfig *notebook.ProcessingConfig
}

// FocusCell records UI focus and overlay state; it never touches the
// document.
type FocusCell struct {
	SessionID string
	CellID    string
	Overlay   registry.Overlay
}

func (m LoadSession) Session() string       { return m.SessionID }
func (m StreamStart) Session() string       { return m.SessionID }
func (m StreamChunk) Session() string       { return m.SessionID }
func (m StreamComplete) Session() string    { return m.SessionID }
func (m StreamError) Session() string       { return m.SessionID }
func (m ExternalInsert) Session() string    { return m.SessionID }
func (m ReorderConfirm) Session() string    { return m.SessionID }
func (m UserInput) Session() string         { return m.SessionID }
func (m UserPaste) Session() string         { return m.SessionID }
func (m UserEditCell) Session() string      { return m.SessionID }
func (m UserDeleteCell) Session() string    { return m.SessionID }
func (m UserConfigureCell) Session() string { return m.SessionID }
func (m FocusCell) Session() string         { return m.SessionID }

func (LoadSession) message()       {}
func (StreamStart) message()       {}
func (StreamChunk) message()       {}
func (StreamComplete) message()    {}
func (StreamError) message()       {}
func (ExternalInsert) message()    {}
func (ReorderConfirm) message()    {}
func (UserInput) message()         {}
func (UserPaste) message()         {}
func (UserEditCell) message()      {}
func (UserDeleteCell) message()    {}
func (UserConfigureCell) message() {}
func (FocusCell) message()         {}

// Result reports what Handle did. Dropped events carry the reason; a
// stale guarded write is neither applied nor dropped.
type Result struct {
	Applied bool
	Dropped bool
	Handled bool
	Reason  error
	CellIDs []string
}

// Outbox receives the engine's outbound messages.
type Outbox interface {
	CellsChanged(sessionID string, cells []notebook.Cell)
	ErrorRaised(sessionID, cellID, message string)
	RefreshRequested(sessionID string, cellIDs []string)
}
