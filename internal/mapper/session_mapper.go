package mapper

import (
	"time"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/model"
	"ai-notebook-be/pkg/notebook"

	"gorm.io/gorm"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}
	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	sources := make([]*entity.SessionSource, len(s.Sources))
	for i := range s.Sources {
		sources[i] = m.SourceToEntity(&s.Sources[i])
	}

	return &entity.Session{
		Id:        s.Id,
		Title:     s.Title,
		CellIds:   append([]string{}, s.CellIds...),
		Sources:   sources,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: s.DeletedAt.Valid,
	}
}

// ToModel leaves Sources empty; sources are written through their own
// repository call.
func (m *SessionMapper) ToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.Session{
		Id:        s.Id,
		Title:     s.Title,
		CellIds:   append([]string{}, s.CellIds...),
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *SessionMapper) SourceToEntity(s *model.SessionSource) *entity.SessionSource {
	if s == nil {
		return nil
	}
	return &entity.SessionSource{
		Id:        s.Id,
		SessionId: s.SessionId,
		Path:      s.Path,
		Title:     s.Title,
		MimeType:  s.MimeType,
		CreatedAt: s.CreatedAt,
	}
}

func (m *SessionMapper) SourceToModel(s *entity.SessionSource) *model.SessionSource {
	if s == nil {
		return nil
	}
	return &model.SessionSource{
		Id:        s.Id,
		SessionId: s.SessionId,
		Path:      s.Path,
		Title:     s.Title,
		MimeType:  s.MimeType,
		CreatedAt: s.CreatedAt,
	}
}

func (m *SessionMapper) ToEntities(sessions []*model.Session) []*entity.Session {
	entities := make([]*entity.Session, len(sessions))
	for i, s := range sessions {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

// ToDomain converts to the engine's session value.
func (m *SessionMapper) ToDomain(s *entity.Session) notebook.Session {
	out := notebook.Session{
		ID:        s.Id.String(),
		Title:     s.Title,
		CellIDs:   append([]string{}, s.CellIds...),
		CreatedAt: s.CreatedAt,
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = *s.UpdatedAt
	}
	for _, src := range s.Sources {
		out.Sources = append(out.Sources, notebook.SourceRef{
			ID:       src.Id.String(),
			Path:     src.Path,
			Title:    src.Title,
			MimeType: src.MimeType,
		})
	}
	return out
}
