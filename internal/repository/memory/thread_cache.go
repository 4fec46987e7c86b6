package memory

import (
	"context"
	"time"

	"ai-research-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// ThreadCache is the injected cache abstraction in front of the durable
// thread store, keyed by the (sessionId, role) composite.
type ThreadCache interface {
	Get(ctx context.Context, sessionID, role string) (*entity.ConversationThread, bool)
	Set(ctx context.Context, thread *entity.ConversationThread)
	Delete(ctx context.Context, sessionID, role string)
}

func threadKey(sessionID, role string) string {
	return sessionID + "|" + role
}

// ThreadCacheRepository is the in-process implementation backed by go-cache.
type ThreadCacheRepository struct {
	cache *cache.Cache
}

func NewThreadCacheRepository() *ThreadCacheRepository {
	// 1 hour default expiration, expired entries purged every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ThreadCacheRepository{
		cache: c,
	}
}

func (r *ThreadCacheRepository) Get(_ context.Context, sessionID, role string) (*entity.ConversationThread, bool) {
	if x, found := r.cache.Get(threadKey(sessionID, role)); found {
		return x.(*entity.ConversationThread), true
	}
	return nil, false
}

func (r *ThreadCacheRepository) Set(_ context.Context, thread *entity.ConversationThread) {
	r.cache.Set(threadKey(thread.SessionId, thread.Role), thread, cache.DefaultExpiration)
}

func (r *ThreadCacheRepository) Delete(_ context.Context, sessionID, role string) {
	r.cache.Delete(threadKey(sessionID, role))
}
