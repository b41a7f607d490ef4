package serverutils

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Title string `json:"title" validate:"required"`
}

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", handler)
	return app
}

func call(t *testing.T, app *fiber.App) (int, BaseResponse[map[string]string]) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body BaseResponse[map[string]string]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"http error", NewNotFoundError("Session not found"), 404, "Session not found"},
		{"wrapped http error", errors.Join(NewConflictError("Stale write", nil)), 409, "Stale write"},
		{"fiber error", fiber.NewError(fiber.StatusUpgradeRequired, "Upgrade Required"), 426, "Upgrade Required"},
		{"plain error", errors.New("boom"), 500, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(func(c *fiber.Ctx) error { return tt.err })
			code, body := call(t, app)
			assert.Equal(t, tt.code, code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	require.NoError(t, ValidateRequest(createRequest{Title: "Notes"}))

	app := newTestApp(func(c *fiber.Ctx) error {
		return ValidateRequest(createRequest{})
	})
	code, body := call(t, app)
	assert.Equal(t, 400, code)
	assert.Equal(t, "validation failed: Title", body.Message)
	assert.Equal(t, "required", body.Data["Title"])
}

func TestSuccessResponse(t *testing.T) {
	res := SuccessResponse("Success get session", map[string]string{"id": "s1"})
	assert.True(t, res.Success)
	assert.Equal(t, 200, res.Code)
	assert.Equal(t, "s1", res.Data["id"])
}
