package contract

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ThreadRepository is the durable side of the thread mapping. Status
// transitions archive threads (reset/expired); rows are only hard-deleted
// when the owning session goes away.
type ThreadRepository interface {
	Create(ctx context.Context, thread *entity.ConversationThread) error
	Update(ctx context.Context, thread *entity.ConversationThread) error
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error
	DeleteBySession(ctx context.Context, sessionId string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationThread, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationThread, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
