package memory

import (
	"sync"

	"ai-research-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

// threadLog is the append-only message sequence for one fallback thread.
// Each log carries its own mutex so different threads never contend.
type threadLog struct {
	mu   sync.Mutex
	msgs []llm.Message
}

// FallbackMessageStore keeps conversation history for threads running in
// fallback mode, keyed by thread handle. Entries never expire on their own;
// they are dropped explicitly when the thread is reset or deleted.
type FallbackMessageStore struct {
	mu    sync.Mutex // guards log creation only
	cache *cache.Cache
}

func NewFallbackMessageStore() *FallbackMessageStore {
	return &FallbackMessageStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *FallbackMessageStore) log(threadID string) *threadLog {
	if x, found := s.cache.Get(threadID); found {
		return x.(*threadLog)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if x, found := s.cache.Get(threadID); found {
		return x.(*threadLog)
	}
	l := &threadLog{}
	s.cache.Set(threadID, l, cache.NoExpiration)
	return l
}

// Append adds one message to the thread's history.
func (s *FallbackMessageStore) Append(threadID string, msg llm.Message) {
	l := s.log(threadID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

// History returns a copy of the thread's messages in append order.
func (s *FallbackMessageStore) History(threadID string) []llm.Message {
	l := s.log(threadID)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]llm.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Drop discards the history for a thread.
func (s *FallbackMessageStore) Drop(threadID string) {
	s.cache.Delete(threadID)
}
