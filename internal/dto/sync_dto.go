package dto

import (
	"encoding/json"

	"ai-notebook-be/pkg/document"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/registry"
)

// Inbound message types carried by SyncEnvelope.Type.
const (
	MessageLoadSession       = "loadSession"
	MessageStreamStart       = "streamStart"
	MessageStreamChunk       = "streamChunk"
	MessageStreamComplete    = "streamComplete"
	MessageStreamError       = "streamError"
	MessageExternalInsert    = "externalInsert"
	MessageReorderConfirm    = "reorderConfirm"
	MessageUserInput         = "userInput"
	MessageUserPaste         = "userPaste"
	MessageUserEditCell      = "userEditCell"
	MessageUserDeleteCell    = "userDeleteCell"
	MessageUserConfigureCell = "userConfigureCell"
	MessageFocusCell         = "focusCell"
)

// Outbound message types pushed over the workspace websocket.
const (
	OutboundCellsChanged = "cellsChanged"
	OutboundErrorRaised  = "errorRaised"
	OutboundCellsSaved   = "cellsSaved"
	OutboundCellsDeleted = "cellsDeleted"
	OutboundResult       = "result"
)

// SyncEnvelope is one inbound message, over HTTP or the websocket.
type SyncEnvelope struct {
	Id        string          `json:"id,omitempty"` // echoed in the websocket result
	Type      string          `json:"type" validate:"required"`
	SessionId string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

type CellIdPayload struct {
	CellId string `json:"cellId" validate:"required"`
}

type StreamStartPayload struct {
	CellId     string `json:"cellId" validate:"required"`
	Kind       string `json:"kind"`
	Regenerate bool   `json:"regenerate"`
}

type StreamChunkPayload struct {
	CellId string `json:"cellId" validate:"required"`
	Text   string `json:"text"`
}

type StreamCompletePayload struct {
	CellId    string  `json:"cellId" validate:"required"`
	FinalText *string `json:"finalText"`
	Force     bool    `json:"force"`
	Modifier  string  `json:"modifier"`
}

type StreamErrorPayload struct {
	CellId string `json:"cellId" validate:"required"`
	Error  string `json:"error"`
}

// CellInput is a cell captured outside the editor.
type CellInput struct {
	Id             string `json:"id"`
	Kind           string `json:"kind"`
	Content        string `json:"content"`
	OriginalPrompt string `json:"originalPrompt"`
	SourceApp      string `json:"sourceApp"`
}

type ExternalInsertPayload struct {
	AfterId string      `json:"afterId"`
	Cells   []CellInput `json:"cells" validate:"required,min=1,dive"`
}

type ReorderConfirmPayload struct {
	OrderedIds []string `json:"orderedIds" validate:"required"`
}

type UserInputPayload struct {
	Cursor    *document.Position  `json:"cursor"`
	Selection *document.Selection `json:"selection"`
	Key       *document.Key       `json:"key"`
	Text      string              `json:"text"`
}

type UserPastePayload struct {
	Fragment *document.Fragment `json:"fragment"`
	Html     string             `json:"html"`
	Markdown string             `json:"markdown"`
	Lexical  json.RawMessage    `json:"lexical"`
}

type UserEditCellPayload struct {
	CellId  string `json:"cellId" validate:"required"`
	Content string `json:"content"`
}

type UserConfigureCellPayload struct {
	CellId           string                     `json:"cellId" validate:"required"`
	ProcessingConfig *notebook.ProcessingConfig `json:"processingConfig"`
}

type FocusCellPayload struct {
	CellId  string `json:"cellId" validate:"required"`
	Overlay string `json:"overlay"`
}

type OpenWorkspaceRequest struct {
	SessionId string `json:"sessionId" validate:"required,uuid"`
}

// SyncResultResponse mirrors the engine's handling result.
type SyncResultResponse struct {
	Applied bool     `json:"applied"`
	Dropped bool     `json:"dropped"`
	Handled bool     `json:"handled"`
	Reason  string   `json:"reason,omitempty"`
	CellIds []string `json:"cellIds,omitempty"`
}

type SyncSnapshotResponse struct {
	WorkspaceId  string                 `json:"workspaceId"`
	SessionId    string                 `json:"sessionId"`
	Cells        []notebook.Cell        `json:"cells"`
	Focus        string                 `json:"focus,omitempty"`
	Overlay      registry.Overlay       `json:"overlay,omitempty"`
	Accumulators []registry.Accumulator `json:"accumulators"`
	Errors       map[string]string      `json:"errors,omitempty"`
	Pending      int                    `json:"pending"`
}

// OutboundMessage is pushed to every connection of a workspace.
type OutboundMessage struct {
	Type        string      `json:"type"`
	Id          string      `json:"id,omitempty"`
	WorkspaceId string      `json:"workspaceId"`
	SessionId   string      `json:"sessionId,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
}

type CellsChangedPayload struct {
	Cells []notebook.Cell `json:"cells"`
}

type ErrorRaisedPayload struct {
	CellId  string `json:"cellId"`
	Message string `json:"message"`
}

type CellIdsPayload struct {
	CellIds []string `json:"cellIds"`
}
