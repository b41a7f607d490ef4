package service

import (
	"context"
	"fmt"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/pkg/events"
	pktNats "ai-notebook-be/pkg/nats" // Renamed to avoid collision
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(workspaceId string, msg dto.OutboundMessage)
}

// EventPublisher puts events on the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler pktNats.EventHandler) error
}

// NotificationService relays bus events to the workspaces they belong to.
type NotificationService struct {
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() error {
	if err := s.subscriber.Subscribe("events.>", "sync-notifier", s.handleEvent); err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.>", nil)
	return nil
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	evt := events.BaseEvent{Type: event.EventType(), Data: event.Payload(), OccurredAt: event.Timestamp()}
	workspaceId := evt.String("workspace_id")
	if workspaceId == "" {
		s.logger.Warn("NotificationService", fmt.Sprintf("Event %s has no workspace_id", evt.Type), nil)
		return nil
	}

	out := dto.OutboundMessage{
		WorkspaceId: workspaceId,
		SessionId:   evt.String("session_id"),
	}

	switch evt.Type {
	case events.TypeCellErrorRaised:
		out.Type = dto.OutboundErrorRaised
		out.Payload = dto.ErrorRaisedPayload{
			CellId:  evt.String("cell_id"),
			Message: evt.String("message"),
		}
	case events.TypeCellsSaved:
		out.Type = dto.OutboundCellsSaved
		out.Payload = dto.CellIdsPayload{CellIds: evt.StringSlice("cell_ids")}
	case events.TypeCellsDeleted:
		out.Type = dto.OutboundCellsDeleted
		out.Payload = dto.CellIdsPayload{CellIds: evt.StringSlice("cell_ids")}
	default:
		s.logger.Debug("NotificationService", fmt.Sprintf("Ignoring event: %s", evt.Type), nil)
		return nil
	}

	s.logger.Debug("NotificationService", fmt.Sprintf("Delivering event: %s", evt.Type), map[string]interface{}{
		"workspace_id": workspaceId,
	})
	s.delivery.Send(workspaceId, out)
	return nil
}
