package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ai-research-be/internal/entity"
	"ai-research-be/pkg/llm"
)

func TestFallbackStoreKeepsAppendOrder(t *testing.T) {
	store := NewFallbackMessageStore()
	store.Append("t1", llm.Message{Role: "system", Content: "be brief"})
	store.Append("t1", llm.Message{Role: "user", Content: "hi"})
	store.Append("t1", llm.Message{Role: "assistant", Content: "hello"})

	history := store.History("t1")
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Role != "system" || history[2].Content != "hello" {
		t.Errorf("history out of order: %+v", history)
	}
}

func TestFallbackStoreHistoryReturnsCopy(t *testing.T) {
	store := NewFallbackMessageStore()
	store.Append("t1", llm.Message{Role: "user", Content: "original"})

	history := store.History("t1")
	history[0].Content = "mutated"

	if got := store.History("t1")[0].Content; got != "original" {
		t.Errorf("stored history was mutated through the returned slice: %q", got)
	}
}

func TestFallbackStoreIsolatesThreads(t *testing.T) {
	store := NewFallbackMessageStore()
	store.Append("t1", llm.Message{Role: "user", Content: "for t1"})
	store.Append("t2", llm.Message{Role: "user", Content: "for t2"})

	if got := store.History("t1"); len(got) != 1 || got[0].Content != "for t1" {
		t.Errorf("t1 history polluted: %+v", got)
	}

	store.Drop("t1")
	if got := store.History("t1"); len(got) != 0 {
		t.Errorf("expected empty history after drop, got %+v", got)
	}
	if got := store.History("t2"); len(got) != 1 {
		t.Errorf("drop of t1 affected t2: %+v", got)
	}
}

func TestFallbackStoreConcurrentAppends(t *testing.T) {
	store := NewFallbackMessageStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Append("t1", llm.Message{Role: "user", Content: fmt.Sprintf("msg %d", i)})
		}(i)
	}
	wg.Wait()

	if got := len(store.History("t1")); got != 20 {
		t.Errorf("expected 20 messages, got %d", got)
	}
}

func TestThreadCacheKeysBySessionAndRole(t *testing.T) {
	cache := NewThreadCacheRepository()
	ctx := context.Background()

	refiner := &entity.ConversationThread{SessionId: "s1", Role: "refiner", ThreadId: "thread_r"}
	assistant := &entity.ConversationThread{SessionId: "s1", Role: "assistant", ThreadId: "thread_a"}
	cache.Set(ctx, refiner)
	cache.Set(ctx, assistant)

	if got, ok := cache.Get(ctx, "s1", "refiner"); !ok || got.ThreadId != "thread_r" {
		t.Errorf("refiner lookup failed: %+v", got)
	}
	if got, ok := cache.Get(ctx, "s1", "assistant"); !ok || got.ThreadId != "thread_a" {
		t.Errorf("assistant lookup failed: %+v", got)
	}
	if _, ok := cache.Get(ctx, "s2", "refiner"); ok {
		t.Error("unexpected hit for a different session")
	}

	cache.Delete(ctx, "s1", "refiner")
	if _, ok := cache.Get(ctx, "s1", "refiner"); ok {
		t.Error("refiner entry survived delete")
	}
	if _, ok := cache.Get(ctx, "s1", "assistant"); !ok {
		t.Error("delete of refiner entry evicted the assistant entry")
	}
}
