package contract

import (
	"context"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CellRepository interface {
	// UpsertBulk inserts or overwrites cells by id, reviving soft-deleted rows.
	UpsertBulk(ctx context.Context, cells []*entity.Cell) error
	DeleteByIds(ctx context.Context, sessionId uuid.UUID, ids []string) error
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Cell, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Cell, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
