package dto

import "ai-notebook-be/pkg/notebook"

// Persistence operations carried on the save-cells topic.
const (
	PersistOpSave   = "save"
	PersistOpDelete = "delete"
)

// PersistCellsMessage is one batch of the persistence bridge.
type PersistCellsMessage struct {
	WorkspaceId string          `json:"workspace_id"`
	SessionId   string          `json:"session_id"`
	Op          string          `json:"op"`
	Cells       []notebook.Cell `json:"cells,omitempty"`
	CellIds     []string        `json:"cell_ids,omitempty"`
}

// PersistResultMessage answers a PersistCellsMessage with the same uuid.
type PersistResultMessage struct {
	Error string `json:"error,omitempty"`
}
