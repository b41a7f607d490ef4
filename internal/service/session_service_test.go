package service

import (
	"context"
	"testing"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewSessionService(store, lexical.NewCodec())

	t.Run("create seeded from a source", func(t *testing.T) {
		res, err := svc.Create(ctx, &dto.CreateSessionRequest{
			Title:   "Reading notes",
			Source:  &dto.SourceRequest{Path: "/papers/attention.pdf", Title: "Attention"},
			Excerpt: "Attention is all you need.",
		})
		require.NoError(t, err)

		session, cells, err := svc.Load(ctx, res.Id)
		require.NoError(t, err)
		assert.Equal(t, "Reading notes", session.Title)
		require.Len(t, cells, 1)
		assert.Equal(t, notebook.KindQuotedExcerpt, cells[0].Kind)
		assert.Contains(t, cells[0].Content, "Attention is all you need.")
		assert.Equal(t, "/papers/attention.pdf", cells[0].SourceApp)
		assert.Equal(t, []string{cells[0].ID}, session.CellIDs)

		show, err := svc.Show(ctx, res.Id)
		require.NoError(t, err)
		require.Len(t, show.Sources, 1)
		assert.Equal(t, "Attention", show.Sources[0].Title)
	})

	t.Run("create empty", func(t *testing.T) {
		res, err := svc.Create(ctx, &dto.CreateSessionRequest{Title: "Blank"})
		require.NoError(t, err)

		_, cells, err := svc.Load(ctx, res.Id)
		require.NoError(t, err)
		assert.Empty(t, cells)
	})

	t.Run("update and delete", func(t *testing.T) {
		res, err := svc.Create(ctx, &dto.CreateSessionRequest{Title: "Draft"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, &dto.UpdateSessionRequest{Id: res.Id, Title: "Final"})
		require.NoError(t, err)
		show, err := svc.Show(ctx, res.Id)
		require.NoError(t, err)
		assert.Equal(t, "Final", show.Title)
		assert.NotNil(t, show.UpdatedAt)

		require.NoError(t, svc.Delete(ctx, res.Id))
		_, err = svc.Show(ctx, res.Id)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("missing session", func(t *testing.T) {
		_, _, err := svc.Load(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrSessionNotFound)

		_, err = svc.AddSource(ctx, &dto.AddSourceRequest{SessionId: uuid.New(), SourceRequest: dto.SourceRequest{Path: "x"}})
		assert.ErrorIs(t, err, ErrSessionNotFound)

		assert.ErrorIs(t, svc.Delete(ctx, uuid.New()), ErrSessionNotFound)
	})

	t.Run("list", func(t *testing.T) {
		res, err := svc.List(ctx, &dto.ListSessionsRequest{Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Total)
		require.Len(t, res.Sessions, 2)
		assert.Equal(t, "Blank", res.Sessions[0].Title)
		assert.Equal(t, 1, res.Sessions[1].CellCount)
	})
}
