package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/internal/service"
	"ai-notebook-be/pkg/notebook"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessionService struct {
	service.ISessionService
	created *dto.CreateSessionRequest
	listed  *dto.ListSessionsRequest
}

func (s *stubSessionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	s.created = req
	return &dto.CreateSessionResponse{Id: uuid.New()}, nil
}

func (s *stubSessionService) Show(ctx context.Context, id uuid.UUID) (*dto.ShowSessionResponse, error) {
	return nil, service.ErrSessionNotFound
}

func (s *stubSessionService) List(ctx context.Context, req *dto.ListSessionsRequest) (*dto.ListSessionsResponse, error) {
	s.listed = req
	return &dto.ListSessionsResponse{}, nil
}

func (s *stubSessionService) Load(ctx context.Context, id uuid.UUID) (*notebook.Session, []notebook.Cell, error) {
	return nil, nil, service.ErrSessionNotFound
}

type stubSyncService struct {
	service.ISyncService
	opened []string
}

func (s *stubSyncService) Open(ctx context.Context, workspaceId, sessionId string) (*dto.SyncSnapshotResponse, error) {
	s.opened = append(s.opened, workspaceId+"/"+sessionId)
	return &dto.SyncSnapshotResponse{WorkspaceId: workspaceId, SessionId: sessionId}, nil
}

func (s *stubSyncService) Snapshot(ctx context.Context, workspaceId string) (*dto.SyncSnapshotResponse, error) {
	return nil, service.ErrWorkspaceNotOpen
}

func newTestApp(register ...func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	for _, fn := range register {
		fn(api)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, serverutils.BaseResponse[json.RawMessage]) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out serverutils.BaseResponse[json.RawMessage]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSessionController(t *testing.T) {
	svc := &stubSessionService{}
	app := newTestApp(NewSessionController(svc).RegisterRoutes)

	t.Run("create", func(t *testing.T) {
		code, res := do(t, app, fiber.MethodPost, "/api/session/v1", `{"title":"Reading notes","excerpt":"quote"}`)
		assert.Equal(t, fiber.StatusCreated, code)
		assert.True(t, res.Success)
		require.NotNil(t, svc.created)
		assert.Equal(t, "quote", svc.created.Excerpt)
	})

	t.Run("create validates the title", func(t *testing.T) {
		code, res := do(t, app, fiber.MethodPost, "/api/session/v1", `{}`)
		assert.Equal(t, fiber.StatusBadRequest, code)
		assert.False(t, res.Success)
		assert.Contains(t, string(res.Data), "Title")
	})

	t.Run("list reads the query", func(t *testing.T) {
		code, _ := do(t, app, fiber.MethodGet, "/api/session/v1?q=draft&limit=5&offset=10", "")
		assert.Equal(t, fiber.StatusOK, code)
		require.NotNil(t, svc.listed)
		assert.Equal(t, dto.ListSessionsRequest{Query: "draft", Limit: 5, Offset: 10}, *svc.listed)
	})

	t.Run("show maps not found", func(t *testing.T) {
		code, res := do(t, app, fiber.MethodGet, "/api/session/v1/"+uuid.NewString(), "")
		assert.Equal(t, fiber.StatusNotFound, code)
		assert.Equal(t, "Session not found", res.Message)
	})

	t.Run("invalid id", func(t *testing.T) {
		code, _ := do(t, app, fiber.MethodGet, "/api/session/v1/not-a-uuid", "")
		assert.Equal(t, fiber.StatusBadRequest, code)
	})
}

func TestSyncController(t *testing.T) {
	svc := &stubSyncService{}
	app := newTestApp(NewSyncController(svc, nil).RegisterRoutes)
	sessionId := uuid.NewString()

	t.Run("open", func(t *testing.T) {
		code, res := do(t, app, fiber.MethodPost, "/api/sync/v1/workspaces/tab-1/open", `{"sessionId":"`+sessionId+`"}`)
		assert.Equal(t, fiber.StatusOK, code)
		assert.True(t, res.Success)
		assert.Equal(t, []string{"tab-1/" + sessionId}, svc.opened)
	})

	t.Run("open requires a session id", func(t *testing.T) {
		code, _ := do(t, app, fiber.MethodPost, "/api/sync/v1/workspaces/tab-1/open", `{"sessionId":"nope"}`)
		assert.Equal(t, fiber.StatusBadRequest, code)
	})

	t.Run("workspace id is bounded", func(t *testing.T) {
		code, res := do(t, app, fiber.MethodGet, "/api/sync/v1/workspaces/"+strings.Repeat("w", maxWorkspaceIdLength+1), "")
		assert.Equal(t, fiber.StatusBadRequest, code)
		assert.Equal(t, "Invalid workspace id", res.Message)
	})

	t.Run("snapshot of a closed workspace", func(t *testing.T) {
		code, _ := do(t, app, fiber.MethodGet, "/api/sync/v1/workspaces/tab-2", "")
		assert.Equal(t, fiber.StatusNotFound, code)
	})
}
