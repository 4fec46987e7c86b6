package unitofwork

import (
	"context"

	"ai-research-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ThreadRepository() contract.ThreadRepository
	DocumentRepository() contract.DocumentRepository
	VectorEntryRepository() contract.VectorEntryRepository
	LiveSourceRepository() contract.LiveSourceRepository
}
