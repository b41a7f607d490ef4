package unitofwork

import (
	"context"

	"ai-notebook-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	CellRepository() contract.CellRepository
}
