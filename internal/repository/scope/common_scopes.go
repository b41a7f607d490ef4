package scope

import "gorm.io/gorm"

// OrderByPosition is the document order of cells.
func OrderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC")
}
