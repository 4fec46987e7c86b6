package memory

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/entity"

	"github.com/redis/go-redis/v9"
)

// RedisThreadCache is the shared cache backend used when several engine
// instances must agree on the session -> thread mapping. Same contract as
// the in-process cache; any redis failure behaves like a cache miss so the
// durable store stays authoritative.
type RedisThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisThreadCache(client *redis.Client) *RedisThreadCache {
	return &RedisThreadCache{
		client: client,
		ttl:    1 * time.Hour,
	}
}

func (r *RedisThreadCache) key(sessionID, role string) string {
	return "thread:" + threadKey(sessionID, role)
}

func (r *RedisThreadCache) Get(ctx context.Context, sessionID, role string) (*entity.ConversationThread, bool) {
	raw, err := r.client.Get(ctx, r.key(sessionID, role)).Bytes()
	if err != nil {
		return nil, false
	}
	var thread entity.ConversationThread
	if err := json.Unmarshal(raw, &thread); err != nil {
		return nil, false
	}
	return &thread, true
}

func (r *RedisThreadCache) Set(ctx context.Context, thread *entity.ConversationThread) {
	raw, err := json.Marshal(thread)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.key(thread.SessionId, thread.Role), raw, r.ttl)
}

func (r *RedisThreadCache) Delete(ctx context.Context, sessionID, role string) {
	r.client.Del(ctx, r.key(sessionID, role))
}
