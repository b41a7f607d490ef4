package controller

import (
	"errors"

	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDiagnosticsController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
	GetLogById(ctx *fiber.Ctx) error
	GetWorkspaces(ctx *fiber.Ctx) error
}

// diagnosticsController exposes the sync log file and the open workspaces.
type diagnosticsController struct {
	syncLogger logger.ILogger
	sync       service.ISyncService
}

func NewDiagnosticsController(syncLogger logger.ILogger, sync service.ISyncService) IDiagnosticsController {
	return &diagnosticsController{syncLogger: syncLogger, sync: sync}
}

func (c *diagnosticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/diagnostics/v1")
	h.Get("logs", c.GetLogs)
	h.Get("logs/:id", c.GetLogById)
	h.Get("workspaces", c.GetWorkspaces)
}

func (c *diagnosticsController) GetLogs(ctx *fiber.Ctx) error {
	logs, err := c.syncLogger.GetLogs(ctx.Query("level"), ctx.QueryInt("limit", 50), ctx.QueryInt("offset", 0))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get logs", logs))
}

func (c *diagnosticsController) GetLogById(ctx *fiber.Ctx) error {
	entry, err := c.syncLogger.GetLogById(ctx.Params("id"))
	if errors.Is(err, logger.ErrLogNotFound) {
		return serverutils.NewNotFoundError("Log not found")
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get log", entry))
}

func (c *diagnosticsController) GetWorkspaces(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get workspaces", c.sync.Workspaces()))
}
