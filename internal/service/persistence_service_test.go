package service

import (
	"context"
	"testing"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/pkg/events"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	store := newMemStore()
	publisher := &recordingPublisher{}
	log := logger.NewNopLogger()

	consumer := NewConsumerService(pubSub, "SAVE_CELLS", store, publisher, log)
	require.NoError(t, consumer.Consume(ctx))
	persistenceService := NewPersistenceService(pubSub, "SAVE_CELLS", log)
	require.NoError(t, persistenceService.Start(ctx))

	created, err := NewSessionService(store, lexical.NewCodec()).Create(ctx, &dto.CreateSessionRequest{Title: "Notes"})
	require.NoError(t, err)
	sessionId := created.Id.String()

	sink := persistenceService.Sink("ws-1")
	writeCtx, writeCancel := context.WithTimeout(ctx, 2*time.Second)
	defer writeCancel()

	t.Run("save writes rows and order", func(t *testing.T) {
		err := sink.SaveCells(writeCtx, sessionId, []notebook.Cell{
			{ID: "b", Kind: notebook.KindAIResponse, Content: "second", Order: 1, OriginalPrompt: "why"},
			{ID: "a", Kind: notebook.KindUserText, Content: "first", Order: 0},
		})
		require.NoError(t, err)

		row := store.cell("b")
		require.NotNil(t, row)
		assert.Equal(t, "second", row.Content)
		assert.Equal(t, "why", row.OriginalPrompt)
		assert.Equal(t, []string{"a", "b"}, store.session(created.Id).CellIds)
	})

	t.Run("delete removes rows", func(t *testing.T) {
		require.NoError(t, sink.DeleteCells(writeCtx, sessionId, []string{"a"}))
		assert.Nil(t, store.cell("a"))
		assert.Equal(t, []string{"b"}, store.session(created.Id).CellIds)
	})

	t.Run("unknown session fails the write", func(t *testing.T) {
		err := sink.SaveCells(writeCtx, uuid.NewString(), []notebook.Cell{{ID: "z", Kind: notebook.KindUserText}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Session not found")
		assert.Nil(t, store.cell("z"))
	})

	t.Run("successful writes are announced", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return len(publisher.types()) == 2
		}, time.Second, 10*time.Millisecond)
		assert.ElementsMatch(t, []string{events.TypeCellsSaved, events.TypeCellsDeleted}, publisher.types())
	})
}

func TestPersistenceHonoursContext(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	// No consumer: nobody answers.
	svc := NewPersistenceService(pubSub, "SAVE_CELLS", logger.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := svc.Sink("ws").DeleteCells(ctx, uuid.NewString(), []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
