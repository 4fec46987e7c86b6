package threadmgr

import (
	"context"
	"fmt"
	"time"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/threads"
)

// NewFallbackThreadID synthesizes a local thread handle for a session when
// the remote service could not be reached.
func NewFallbackThreadID(sessionID string) string {
	return fmt.Sprintf("fallback_%s_%d", sessionID, time.Now().UnixNano())
}

// runner executes one conversational exchange against wherever the thread's
// history lives. Two implementations: the remote thread service, and the
// local fallback store driven by a stateless completion call.
type runner interface {
	exchange(ctx context.Context, thread *entity.ConversationThread, message, systemPrompt string) (string, error)
}

type remoteRunner struct {
	api          threads.API
	pollAttempts int
	pollDelay    time.Duration
}

// exchange appends the user message, starts a run, polls it to completion
// within the bounded poll attempts, and fetches the produced assistant
// message. The remote service owns the message history; the system prompt
// rides along as run instructions.
func (r *remoteRunner) exchange(ctx context.Context, thread *entity.ConversationThread, message, systemPrompt string) (string, error) {
	if err := r.api.AddMessage(ctx, thread.ThreadId, constant.MessageRoleUser, message); err != nil {
		return "", err
	}

	runID, err := r.api.CreateRun(ctx, thread.ThreadId, systemPrompt)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < r.pollAttempts; attempt++ {
		status, err := r.api.GetRunStatus(ctx, thread.ThreadId, runID)
		if err != nil {
			return "", err
		}
		switch status {
		case threads.RunStatusCompleted:
			return r.api.LatestAssistantMessage(ctx, thread.ThreadId)
		case threads.RunStatusFailed, threads.RunStatusExpired, threads.RunStatusCancelled:
			return "", &threads.RemoteError{Op: "run", Err: fmt.Errorf("run %s ended with status %s", runID, status)}
		}

		select {
		case <-ctx.Done():
			return "", &threads.RemoteError{Op: "run", Err: ctx.Err()}
		case <-time.After(r.pollDelay):
		}
	}

	return "", &threads.RemoteError{Op: "run", Err: fmt.Errorf("run %s did not complete within %d polls", runID, r.pollAttempts)}
}

type fallbackRunner struct {
	store       *memory.FallbackMessageStore
	completions llm.LLMProvider
}

// exchange appends to the local message store and drives a stateless
// completion over the locally stored history. The system prompt lands in
// the history once; later exchanges with the same prompt reuse it.
func (r *fallbackRunner) exchange(ctx context.Context, thread *entity.ConversationThread, message, systemPrompt string) (string, error) {
	history := r.store.History(thread.ThreadId)
	if systemPrompt != "" && !startsWithSystemPrompt(history, systemPrompt) {
		r.store.Append(thread.ThreadId, llm.Message{Role: constant.MessageRoleSystem, Content: systemPrompt})
	}
	r.store.Append(thread.ThreadId, llm.Message{Role: constant.MessageRoleUser, Content: message})

	history = r.store.History(thread.ThreadId)
	reply, err := r.completions.Chat(ctx, history)
	if err != nil {
		return "", fmt.Errorf("fallback completion failed: %w", err)
	}

	r.store.Append(thread.ThreadId, llm.Message{Role: constant.MessageRoleAssistant, Content: reply})
	return reply, nil
}

func startsWithSystemPrompt(history []llm.Message, systemPrompt string) bool {
	return len(history) > 0 &&
		history[0].Role == constant.MessageRoleSystem &&
		history[0].Content == systemPrompt
}
