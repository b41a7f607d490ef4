package entity

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Id        uuid.UUID
	Title     string
	CellIds   []string
	Sources   []*SessionSource
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

type SessionSource struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Path      string
	Title     string
	MimeType  string
	CreatedAt time.Time
}
