package service

import (
	"context"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/pkg/events"
	"ai-notebook-be/pkg/notebook"
)

const publishTimeout = 5 * time.Second

// Refresher recomputes live-refresh cells.
type Refresher interface {
	Refresh(workspaceId, sessionId string, cellIds []string)
}

// workspaceOutbox carries engine output of one workspace to its
// connections. It runs on the worker goroutine and must not block.
type workspaceOutbox struct {
	workspaceId string
	delivery    NotificationDelivery
	publisher   EventPublisher
	refresher   func() Refresher
	logger      logger.ILogger
}

func (o *workspaceOutbox) CellsChanged(sessionId string, cells []notebook.Cell) {
	o.delivery.Send(o.workspaceId, dto.OutboundMessage{
		Type:        dto.OutboundCellsChanged,
		WorkspaceId: o.workspaceId,
		SessionId:   sessionId,
		Payload:     dto.CellsChangedPayload{Cells: cells},
	})
}

// ErrorRaised goes through the event bus so every instance holding a
// connection of the workspace sees it; delivery falls back to the local
// hub when the bus is unavailable.
func (o *workspaceOutbox) ErrorRaised(sessionId, cellId, message string) {
	direct := dto.OutboundMessage{
		Type:        dto.OutboundErrorRaised,
		WorkspaceId: o.workspaceId,
		SessionId:   sessionId,
		Payload:     dto.ErrorRaisedPayload{CellId: cellId, Message: message},
	}
	if o.publisher == nil {
		o.delivery.Send(o.workspaceId, direct)
		return
	}

	evt := events.CellErrorRaised(o.workspaceId, sessionId, cellId, message)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.publisher.Publish(ctx, evt); err != nil {
			o.logger.Warn("SyncService", "Failed to publish cell error, delivering locally", map[string]interface{}{
				"workspace_id": o.workspaceId,
				"cell_id":      cellId,
				"error":        err.Error(),
			})
			o.delivery.Send(o.workspaceId, direct)
		}
	}()
}

func (o *workspaceOutbox) RefreshRequested(sessionId string, cellIds []string) {
	r := o.refresher()
	if r == nil {
		o.logger.Debug("SyncService", "Refresh requested without a refresher", map[string]interface{}{
			"workspace_id": o.workspaceId,
			"cell_ids":     cellIds,
		})
		return
	}
	r.Refresh(o.workspaceId, sessionId, cellIds)
}
