package contract

import (
	"context"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	Update(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateCellIds(ctx context.Context, id uuid.UUID, cellIds []string) error
	AddSource(ctx context.Context, source *entity.SessionSource) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Session, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
