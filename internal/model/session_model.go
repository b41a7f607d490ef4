package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Session struct {
	Id        uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string                      `gorm:"type:varchar(255);not null"`
	CellIds   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Sources   []SessionSource             `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt              `gorm:"index"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionSource references an external document used as AI context.
type SessionSource struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;index"`
	Path      string    `gorm:"type:text;not null"`
	Title     string    `gorm:"type:varchar(255)"`
	MimeType  string    `gorm:"type:varchar(127)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SessionSource) TableName() string {
	return "session_sources"
}
