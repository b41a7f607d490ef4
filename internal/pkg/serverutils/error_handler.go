package serverutils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// HTTPError carries a status code through the service layer.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string, err error) *HTTPError {
	return &HTTPError{Code: fiber.StatusBadRequest, Message: message, Err: err}
}

func NewNotFoundError(message string) *HTTPError {
	return &HTTPError{Code: fiber.StatusNotFound, Message: message}
}

func NewConflictError(message string, err error) *HTTPError {
	return &HTTPError{Code: fiber.StatusConflict, Message: message, Err: err}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the
// BaseResponse envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			code := fiber.StatusBadRequest
			return ctx.Status(code).JSON(BaseResponse[map[string]string]{
				Success: false,
				Code:    code,
				Message: validationErr.Error(),
				Data:    validationErr.Fields,
			})
		}

		code, message := ErrorStatus(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// ErrorStatus maps an error to the status code and message sent to the
// client. Unknown errors are internal.
func ErrorStatus(err error) (int, string) {
	var httpErr *HTTPError
	var fiberErr *fiber.Error
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, validationErr.Error()
	case errors.As(err, &httpErr):
		return httpErr.Code, httpErr.Message
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}
