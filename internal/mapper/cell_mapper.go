package mapper

import (
	"encoding/json"
	"sort"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/model"
	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CellMapper struct{}

func NewCellMapper() *CellMapper {
	return &CellMapper{}
}

func (m *CellMapper) ToEntity(c *model.Cell) *entity.Cell {
	if c == nil {
		return nil
	}

	var pc *notebook.ProcessingConfig
	if len(c.ProcessingConfig) > 0 && string(c.ProcessingConfig) != "null" {
		var decoded notebook.ProcessingConfig
		// A malformed column is treated as no configuration.
		if err := json.Unmarshal(c.ProcessingConfig, &decoded); err == nil {
			pc = &decoded
		}
	}

	return &entity.Cell{
		Id:               c.Id,
		SessionId:        c.SessionId,
		Kind:             notebook.Kind(c.Kind),
		Content:          c.Content,
		Position:         c.Position,
		OriginalPrompt:   c.OriginalPrompt,
		Restatement:      c.Restatement,
		Modifiers:        []notebook.Modifier(c.Modifiers),
		Versions:         []notebook.Version(c.Versions),
		ActiveVersionId:  c.ActiveVersionId,
		ProcessingConfig: pc,
		SourceApp:        c.SourceApp,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (m *CellMapper) ToModel(c *entity.Cell) *model.Cell {
	if c == nil {
		return nil
	}

	var pc datatypes.JSON
	if c.ProcessingConfig != nil {
		raw, err := json.Marshal(c.ProcessingConfig)
		if err == nil {
			pc = datatypes.JSON(raw)
		}
	}

	return &model.Cell{
		Id:               c.Id,
		SessionId:        c.SessionId,
		Kind:             string(c.Kind),
		Content:          c.Content,
		Position:         c.Position,
		OriginalPrompt:   c.OriginalPrompt,
		Restatement:      c.Restatement,
		Modifiers:        datatypes.JSONSlice[notebook.Modifier](c.Modifiers),
		Versions:         datatypes.JSONSlice[notebook.Version](c.Versions),
		ActiveVersionId:  c.ActiveVersionId,
		ProcessingConfig: pc,
		SourceApp:        c.SourceApp,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (m *CellMapper) ToEntities(cells []*model.Cell) []*entity.Cell {
	entities := make([]*entity.Cell, len(cells))
	for i, c := range cells {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *CellMapper) ToModels(cells []*entity.Cell) []*model.Cell {
	models := make([]*model.Cell, len(cells))
	for i, c := range cells {
		models[i] = m.ToModel(c)
	}
	return models
}

// ToDomain converts a stored cell into the engine's cell value.
func (m *CellMapper) ToDomain(c *entity.Cell) notebook.Cell {
	return notebook.Cell{
		ID:               c.Id,
		Kind:             c.Kind,
		Content:          c.Content,
		Order:            c.Position,
		OriginalPrompt:   c.OriginalPrompt,
		Restatement:      c.Restatement,
		Modifiers:        c.Modifiers,
		Versions:         c.Versions,
		ActiveVersionID:  c.ActiveVersionId,
		ProcessingConfig: c.ProcessingConfig,
		SourceApp:        c.SourceApp,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}.Clone()
}

func (m *CellMapper) FromDomain(sessionId uuid.UUID, c notebook.Cell) *entity.Cell {
	c = c.Clone()
	return &entity.Cell{
		Id:               c.ID,
		SessionId:        sessionId,
		Kind:             c.Kind,
		Content:          c.Content,
		Position:         c.Order,
		OriginalPrompt:   c.OriginalPrompt,
		Restatement:      c.Restatement,
		Modifiers:        c.Modifiers,
		Versions:         c.Versions,
		ActiveVersionId:  c.ActiveVersionID,
		ProcessingConfig: c.ProcessingConfig,
		SourceApp:        c.SourceApp,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// ToDomainOrdered returns the cells in the session's stored order. Ids in
// order that have no row are skipped; rows missing from order follow by
// position.
func (m *CellMapper) ToDomainOrdered(order []string, cells []*entity.Cell) []notebook.Cell {
	byId := make(map[string]*entity.Cell, len(cells))
	for _, c := range cells {
		byId[c.Id] = c
	}

	out := make([]notebook.Cell, 0, len(cells))
	seen := make(map[string]bool, len(cells))
	for _, id := range order {
		c, ok := byId[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, m.ToDomain(c))
	}

	var rest []*entity.Cell
	for _, c := range cells {
		if !seen[c.Id] {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Position < rest[j].Position })
	for _, c := range rest {
		out = append(out, m.ToDomain(c))
	}

	notebook.Renumber(out)
	return out
}
