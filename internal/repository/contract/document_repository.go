package contract

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Update(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	// FindBySourceIds is the single batched lookup behind retrieval enrichment.
	FindBySourceIds(ctx context.Context, sourceIds []string) ([]*entity.Document, error)
	// RecordUsage bumps the query count and folds score into the running
	// average relevance in one atomic update.
	RecordUsage(ctx context.Context, sourceId string, score float64) error
}
