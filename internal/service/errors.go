package service

import (
	"errors"
	"fmt"

	"ai-notebook-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrSessionNotFound  = serverutils.NewNotFoundError("Session not found")
	ErrCellNotFound     = serverutils.NewNotFoundError("Cell not found")
	ErrWorkspaceNotOpen = serverutils.NewNotFoundError("Workspace is not open")
	ErrWorkspaceClosed  = &serverutils.HTTPError{Code: fiber.StatusGone, Message: "Workspace was closed"}
	ErrCellBusy         = serverutils.NewConflictError("Cell already has an active producer", nil)
	ErrEmptyPrompt      = serverutils.NewBadRequestError("Prompt is required", nil)
)

// errStreamAbandoned stops a producer whose target went away.
var errStreamAbandoned = errors.New("stream abandoned")

// ErrInvalidMessage marks an envelope that cannot be turned into an engine
// message.
var ErrInvalidMessage = errors.New("invalid sync message")

func invalidMessage(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidMessage}, args...)...)
	return serverutils.NewBadRequestError(ErrInvalidMessage.Error(), err)
}
