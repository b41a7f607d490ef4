package specification

import (
	"ai-notebook-be/pkg/notebook"

	"gorm.io/gorm"
)

// ByCellID filters by a cell id. Cell ids are strings minted by the engine.
type ByCellID struct {
	ID string
}

func (s ByCellID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type ByCellIDs struct {
	IDs []string
}

func (s ByCellIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN ?", s.IDs)
}

type ByKind struct {
	Kind notebook.Kind
}

func (s ByKind) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kind = ?", string(s.Kind))
}
