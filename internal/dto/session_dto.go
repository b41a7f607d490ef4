package dto

import (
	"time"

	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
)

type SourceRequest struct {
	Path     string `json:"path" validate:"required"`
	Title    string `json:"title"`
	MimeType string `json:"mime_type"`
}

// CreateSessionRequest creates an empty session, or one seeded from a
// source file: the excerpt becomes the first quoted-excerpt cell.
type CreateSessionRequest struct {
	Title   string         `json:"title" validate:"required,max=255"`
	Source  *SourceRequest `json:"source"`
	Excerpt string         `json:"excerpt"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type UpdateSessionRequest struct {
	Id    uuid.UUID
	Title string `json:"title" validate:"required,max=255"`
}

type UpdateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type AddSourceRequest struct {
	SessionId uuid.UUID
	SourceRequest
}

type SourceResponse struct {
	Id       uuid.UUID `json:"id"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	MimeType string    `json:"mime_type"`
}

type ListSessionsRequest struct {
	Query  string
	Limit  int
	Offset int
}

type SessionSummaryResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CellCount int        `json:"cell_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type ListSessionsResponse struct {
	Sessions []*SessionSummaryResponse `json:"sessions"`
	Total    int64                     `json:"total"`
}

type ShowSessionResponse struct {
	Id        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	Sources   []*SourceResponse `json:"sources"`
	Cells     []notebook.Cell   `json:"cells"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt *time.Time        `json:"updated_at"`
}
