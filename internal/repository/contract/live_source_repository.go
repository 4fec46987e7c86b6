package contract

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/specification"
)

type LiveSourceRepository interface {
	Create(ctx context.Context, source *entity.LiveSource) error
	Update(ctx context.Context, source *entity.LiveSource) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LiveSource, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LiveSource, error)
	FindBySourceId(ctx context.Context, sourceId string) (*entity.LiveSource, error)
}
