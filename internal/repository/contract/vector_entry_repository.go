package contract

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredVectorEntry wraps a VectorEntry with its cosine similarity score
type ScoredVectorEntry struct {
	Entry      *entity.VectorEntry
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type VectorEntryRepository interface {
	Create(ctx context.Context, entry *entity.VectorEntry) error
	CreateBulk(ctx context.Context, entries []*entity.VectorEntry) error
	DeleteByIds(ctx context.Context, ids []uuid.UUID) error
	DeleteBySource(ctx context.Context, namespace, sourceId string) error
	DeleteByNamespace(ctx context.Context, namespace string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VectorEntry, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindOldestBySource returns up to limit entries for the source ordered by
	// created_at ascending. Feeds rolling-window eviction.
	FindOldestBySource(ctx context.Context, namespace, sourceId string, limit int) ([]*entity.VectorEntry, error)
	// SearchSimilarWithScore runs a namespace-scoped cosine search. sourceId
	// narrows the search to one document when non-empty.
	SearchSimilarWithScore(ctx context.Context, namespace string, embedding []float32, limit int, threshold float64, sourceId string) ([]*ScoredVectorEntry, error)
}
