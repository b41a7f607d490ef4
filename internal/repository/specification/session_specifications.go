package specification

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySessionID filters rows that belong to a session.
type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// TitleContains is a case-insensitive title search.
type TitleContains struct {
	Query string
}

func (s TitleContains) Apply(db *gorm.DB) *gorm.DB {
	q := strings.TrimSpace(s.Query)
	if q == "" {
		return db
	}
	return db.Where("title ILIKE ?", "%"+q+"%")
}

// WithSources preloads the source references of a session.
type WithSources struct{}

func (s WithSources) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload("Sources", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}
