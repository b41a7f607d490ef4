package implementation

import (
	"context"
	"errors"

	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/mapper"
	"ai-notebook-be/internal/model"
	"ai-notebook-be/internal/repository/contract"
	"ai-notebook-be/internal/repository/scope"
	"ai-notebook-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns overwritten when a cell id already exists. created_at keeps its
// first value.
var cellUpsertColumns = []string{
	"session_id", "kind", "content", "position", "original_prompt", "restatement",
	"modifiers", "versions", "active_version_id", "processing_config", "source_app",
	"updated_at", "deleted_at",
}

type CellRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CellMapper
}

func NewCellRepository(db *gorm.DB) contract.CellRepository {
	return &CellRepositoryImpl{
		db:     db,
		mapper: mapper.NewCellMapper(),
	}
}

func (r *CellRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CellRepositoryImpl) UpsertBulk(ctx context.Context, cells []*entity.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	models := r.mapper.ToModels(cells)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cellUpsertColumns),
		}).
		Create(&models).Error
}

func (r *CellRepositoryImpl) DeleteByIds(ctx context.Context, sessionId uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("session_id = ? AND id IN ?", sessionId, ids).
		Delete(&model.Cell{}).Error
}

func (r *CellRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.Cell{}).Error
}

func (r *CellRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Cell, error) {
	var m model.Cell
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// FindAll returns cells in document order unless a spec orders them.
func (r *CellRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Cell, error) {
	var models []*model.Cell
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Scopes(scope.OrderByPosition).Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CellRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Cell{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
