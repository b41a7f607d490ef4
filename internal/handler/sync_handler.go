package handler

import (
	"ai-notebook-be/internal/controller"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/service"
	internalWS "ai-notebook-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type SyncHandler struct {
	service service.ISyncService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewSyncHandler(service service.ISyncService, hub *internalWS.Hub, log logger.ILogger) *SyncHandler {
	return &SyncHandler{
		service: service,
		hub:     hub,
		logger:  log,
	}
}

func (h *SyncHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/sync/v1/ws/:workspaceId", h.ServeWs)
}

// ServeWs upgrades a workspace connection. With ?sessionId= the session is
// loaded before the upgrade, so a bad id fails as a plain HTTP error.
func (h *SyncHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	workspaceId, err := controller.WorkspaceParam(c)
	if err != nil {
		return err
	}

	if sessionId := c.Query("sessionId"); sessionId != "" {
		if _, err := h.service.Open(c.UserContext(), workspaceId, sessionId); err != nil {
			return err
		}
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("SyncHandler", "Starting WebSocket session", map[string]interface{}{"workspace_id": workspaceId})
		internalWS.ServeWs(h.hub, conn, workspaceId, h.service)
		h.logger.Info("SyncHandler", "WebSocket session ended", map[string]interface{}{"workspace_id": workspaceId})
	})(c)
}
