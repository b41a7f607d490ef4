package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/mapper"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/repository/specification"
	"ai-notebook-be/internal/repository/unitofwork"
	"ai-notebook-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService writes persistence batches to the database. Every batch
// is acked and answered on the result topic; gochannel would redeliver a
// nacked message forever.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	publisher  EventPublisher
	cellMapper *mapper.CellMapper
	logger     logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	publisher EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		publisher:  publisher,
		cellMapper: mapper.NewCellMapper(),
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PersistCellsMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		cs.reply(msg, fmt.Errorf("malformed persistence batch: %w", err))
		msg.Ack()
		return
	}

	err := cs.apply(ctx, &payload)
	if err != nil {
		cs.logger.Error("ConsumerService", "Failed to persist batch", map[string]interface{}{
			"session_id": payload.SessionId,
			"op":         payload.Op,
			"error":      err.Error(),
		})
	} else {
		cs.logger.Debug("ConsumerService", "Batch persisted", map[string]interface{}{
			"session_id": payload.SessionId,
			"op":         payload.Op,
			"cells":      len(payload.Cells) + len(payload.CellIds),
		})
	}

	cs.reply(msg, err)
	msg.Ack()

	if err == nil {
		cs.announce(payload)
	}
}

func (cs *consumerService) apply(ctx context.Context, payload *dto.PersistCellsMessage) error {
	sessionId, err := uuid.Parse(payload.SessionId)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", payload.SessionId, err)
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	session, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	switch payload.Op {
	case dto.PersistOpSave:
		rows := make([]*entity.Cell, 0, len(payload.Cells))
		for _, c := range payload.Cells {
			rows = append(rows, cs.cellMapper.FromDomain(sessionId, c))
		}
		if err := uow.CellRepository().UpsertBulk(ctx, rows); err != nil {
			return err
		}
	case dto.PersistOpDelete:
		if err := uow.CellRepository().DeleteByIds(ctx, sessionId, payload.CellIds); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown persistence op %q", payload.Op)
	}

	cells, err := uow.CellRepository().FindAll(ctx, specification.BySessionID{SessionID: sessionId})
	if err != nil {
		return err
	}
	order := make([]string, len(cells))
	for i, c := range cells {
		order[i] = c.Id
	}
	if err := uow.SessionRepository().UpdateCellIds(ctx, sessionId, order); err != nil {
		return err
	}

	return uow.Commit()
}

func (cs *consumerService) reply(msg *message.Message, outcome error) {
	var result dto.PersistResultMessage
	if outcome != nil {
		result.Error = outcome.Error()
	}
	payload, _ := json.Marshal(result)

	answer := message.NewMessage(watermill.NewUUID(), payload)
	answer.Metadata.Set(requestIdKey, msg.UUID)
	if err := cs.pubSub.Publish(ResultTopic(cs.topicName), answer); err != nil {
		cs.logger.Error("ConsumerService", "Failed to publish persistence result", map[string]interface{}{"error": err.Error()})
	}
}

func (cs *consumerService) announce(payload dto.PersistCellsMessage) {
	if cs.publisher == nil {
		return
	}

	var evt events.Event
	switch payload.Op {
	case dto.PersistOpSave:
		ids := make([]string, len(payload.Cells))
		for i, c := range payload.Cells {
			ids[i] = c.ID
		}
		evt = events.CellsSaved(payload.WorkspaceId, payload.SessionId, ids)
	case dto.PersistOpDelete:
		evt = events.CellsDeleted(payload.WorkspaceId, payload.SessionId, payload.CellIds)
	default:
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := cs.publisher.Publish(ctx, evt); err != nil {
			cs.logger.Warn("ConsumerService", "Failed to publish persistence event", map[string]interface{}{
				"type":  evt.EventType(),
				"error": err.Error(),
			})
		}
	}()
}
