package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/persistence"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// requestIdKey links a result message to the batch it answers.
const requestIdKey = "request_id"

// ResultTopic is the topic the consumer answers a batch topic on.
func ResultTopic(topicName string) string {
	return topicName + "_RESULT"
}

// IPersistenceService hands persistence batches to the consumer and waits
// for the outcome.
type IPersistenceService interface {
	Sink(workspaceId string) persistence.Sink
	Start(ctx context.Context) error
}

type persistenceService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger

	pending sync.Map // message uuid -> chan error
}

func NewPersistenceService(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IPersistenceService {
	return &persistenceService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
	}
}

func (s *persistenceService) Start(ctx context.Context) error {
	results, err := s.pubSub.Subscribe(ctx, ResultTopic(s.topicName))
	if err != nil {
		return err
	}

	go func() {
		for msg := range results {
			s.resolve(msg)
		}
	}()

	return nil
}

func (s *persistenceService) resolve(msg *message.Message) {
	defer msg.Ack()

	id := msg.Metadata.Get(requestIdKey)
	waiter, ok := s.pending.LoadAndDelete(id)
	if !ok {
		s.logger.Debug("PersistenceService", "Result for unknown batch", map[string]interface{}{"request_id": id})
		return
	}

	var result dto.PersistResultMessage
	var outcome error
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		outcome = fmt.Errorf("malformed persistence result: %w", err)
	} else if result.Error != "" {
		outcome = errors.New(result.Error)
	}
	waiter.(chan error) <- outcome
}

func (s *persistenceService) Sink(workspaceId string) persistence.Sink {
	return &workspaceSink{service: s, workspaceId: workspaceId}
}

// publish sends one batch and blocks until the consumer answered it.
func (s *persistenceService) publish(ctx context.Context, batch dto.PersistCellsMessage) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	reply := make(chan error, 1)
	s.pending.Store(msg.UUID, reply)
	defer s.pending.Delete(msg.UUID)

	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type workspaceSink struct {
	service     *persistenceService
	workspaceId string
}

func (k *workspaceSink) SaveCells(ctx context.Context, sessionId string, cells []notebook.Cell) error {
	return k.service.publish(ctx, dto.PersistCellsMessage{
		WorkspaceId: k.workspaceId,
		SessionId:   sessionId,
		Op:          dto.PersistOpSave,
		Cells:       cells,
	})
}

func (k *workspaceSink) DeleteCells(ctx context.Context, sessionId string, ids []string) error {
	return k.service.publish(ctx, dto.PersistCellsMessage{
		WorkspaceId: k.workspaceId,
		SessionId:   sessionId,
		Op:          dto.PersistOpDelete,
		CellIds:     ids,
	})
}
