package controller

import (
	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxWorkspaceIdLength = 128

type ISyncController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	Dispatch(ctx *fiber.Ctx) error
	Snapshot(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	Modify(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
}

type syncController struct {
	service   service.ISyncService
	assistant service.IAssistantService
}

func NewSyncController(service service.ISyncService, assistant service.IAssistantService) ISyncController {
	return &syncController{service: service, assistant: assistant}
}

func (c *syncController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sync/v1/workspaces/:workspaceId")
	h.Get("", c.Snapshot)
	h.Delete("", c.Close)
	h.Post("open", c.Open)
	h.Post("messages", c.Dispatch)
	h.Post("generate", c.Generate)
	h.Post("cells/:cellId/modify", c.Modify)
	h.Post("cells/:cellId/refresh", c.Refresh)
}

// WorkspaceParam reads and checks the workspace id of the route.
func WorkspaceParam(ctx *fiber.Ctx) (string, error) {
	id := ctx.Params("workspaceId")
	if id == "" || len(id) > maxWorkspaceIdLength {
		return "", serverutils.NewBadRequestError("Invalid workspace id", nil)
	}
	return id, nil
}

func (c *syncController) Open(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	var req dto.OpenWorkspaceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Open(ctx.UserContext(), workspaceId, req.SessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open session", res))
}

func (c *syncController) Dispatch(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	var req dto.SyncEnvelope
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Dispatch(ctx.UserContext(), workspaceId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success handle message", res))
}

func (c *syncController) Snapshot(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Snapshot(ctx.UserContext(), workspaceId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get workspace", res))
}

func (c *syncController) Close(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Close(ctx.UserContext(), workspaceId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success close workspace", nil))
}

func (c *syncController) Generate(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistant.Generate(ctx.UserContext(), workspaceId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Generation started", res))
}

func (c *syncController) Modify(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	var req dto.ModifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.CellId = ctx.Params("cellId")
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistant.Modify(ctx.UserContext(), workspaceId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Modification started", res))
}

func (c *syncController) Refresh(ctx *fiber.Ctx) error {
	workspaceId, err := WorkspaceParam(ctx)
	if err != nil {
		return err
	}

	var req dto.RefreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.CellId = ctx.Params("cellId")
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistant.RefreshCell(ctx.UserContext(), workspaceId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Refresh started", res))
}
