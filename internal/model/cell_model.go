package model

import (
	"time"

	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Cell ids are minted by the document engine, so the key is not generated
// by the database.
type Cell struct {
	Id               string                                `gorm:"type:varchar(64);primaryKey"`
	SessionId        uuid.UUID                             `gorm:"type:uuid;not null;index:idx_cells_session_position,priority:1"`
	Kind             string                                `gorm:"type:varchar(32);not null"`
	Content          string                                `gorm:"type:text;not null;default:''"`
	Position         int                                   `gorm:"not null;default:0;index:idx_cells_session_position,priority:2"`
	OriginalPrompt   string                                `gorm:"type:text"`
	Restatement      string                                `gorm:"type:text"`
	Modifiers        datatypes.JSONSlice[notebook.Modifier] `gorm:"type:jsonb"`
	Versions         datatypes.JSONSlice[notebook.Version]  `gorm:"type:jsonb"`
	ActiveVersionId  string                                `gorm:"type:varchar(64)"`
	ProcessingConfig datatypes.JSON                        `gorm:"type:jsonb"`
	SourceApp        string                                `gorm:"type:varchar(255)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (Cell) TableName() string {
	return "cells"
}
