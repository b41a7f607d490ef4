package entity

import (
	"time"

	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
)

type Cell struct {
	Id               string
	SessionId        uuid.UUID
	Kind             notebook.Kind
	Content          string
	Position         int
	OriginalPrompt   string
	Restatement      string
	Modifiers        []notebook.Modifier
	Versions         []notebook.Version
	ActiveVersionId  string
	ProcessingConfig *notebook.ProcessingConfig
	SourceApp        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
