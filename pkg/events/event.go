package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CELLS_SAVED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event codes published by the sync services.
const (
	TypeCellErrorRaised = "CELL_ERROR_RAISED"
	TypeCellsSaved      = "CELLS_SAVED"
	TypeCellsDeleted    = "CELLS_DELETED"
)

// BaseEvent is the generic Event implementation.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// String reads a string field of the payload.
func (e BaseEvent) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// CellErrorRaised reports a failed producer stream on a cell.
func CellErrorRaised(workspaceID, sessionID, cellID, message string) BaseEvent {
	return BaseEvent{
		Type: TypeCellErrorRaised,
		Data: map[string]interface{}{
			"workspace_id": workspaceID,
			"session_id":   sessionID,
			"cell_id":      cellID,
			"message":      message,
		},
		OccurredAt: time.Now(),
	}
}

// CellsSaved confirms that a batch reached the database.
func CellsSaved(workspaceID, sessionID string, cellIDs []string) BaseEvent {
	return cellsEvent(TypeCellsSaved, workspaceID, sessionID, cellIDs)
}

func CellsDeleted(workspaceID, sessionID string, cellIDs []string) BaseEvent {
	return cellsEvent(TypeCellsDeleted, workspaceID, sessionID, cellIDs)
}

func cellsEvent(typ, workspaceID, sessionID string, cellIDs []string) BaseEvent {
	ids := make([]interface{}, len(cellIDs))
	for i, id := range cellIDs {
		ids[i] = id
	}
	return BaseEvent{
		Type: typ,
		Data: map[string]interface{}{
			"workspace_id": workspaceID,
			"session_id":   sessionID,
			"cell_ids":     ids,
		},
		OccurredAt: time.Now(),
	}
}

// StringSlice reads a list of strings from the payload, as decoded from JSON.
func (e BaseEvent) StringSlice(key string) []string {
	raw, _ := e.Data[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
