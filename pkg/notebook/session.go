package notebook

import "time"

// SourceRef points at an external document consumed as AI context.
type SourceRef struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Session is an ordered container of cells.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	CellIDs   []string    `json:"cellIds"`
	Sources   []SourceRef `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
