package threadmgr

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/specification"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/threads"
)

const (
	DefaultPollAttempts = 30
	DefaultPollDelay    = time.Second
)

// Manager owns the lifecycle of conversation threads. Each (session, role)
// pair holds at most one active thread; lookups go cache first, then the
// durable store, and only then create a fresh thread. When the remote
// thread service is unreachable the thread degrades to local fallback mode
// backed by a stateless completion provider.
type Manager struct {
	cache       memory.ThreadCache
	uowFactory  unitofwork.RepositoryFactory
	remote      *remoteRunner
	fallback    *fallbackRunner
	logger      logger.ILogger
	createLocks sync.Map
}

type Config struct {
	PollAttempts int
	PollDelay    time.Duration
}

func NewManager(
	cache memory.ThreadCache,
	uowFactory unitofwork.RepositoryFactory,
	remoteAPI threads.API,
	completions llm.LLMProvider,
	fallbackStore *memory.FallbackMessageStore,
	sysLogger logger.ILogger,
	cfg Config,
) *Manager {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	return &Manager{
		cache:      cache,
		uowFactory: uowFactory,
		remote: &remoteRunner{
			api:          remoteAPI,
			pollAttempts: cfg.PollAttempts,
			pollDelay:    cfg.PollDelay,
		},
		fallback: &fallbackRunner{
			store:       fallbackStore,
			completions: completions,
		},
		logger: sysLogger,
	}
}

func (m *Manager) lockFor(sessionID, role string) *sync.Mutex {
	v, _ := m.createLocks.LoadOrStore(sessionID+"|"+role, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetOrCreateThread resolves the active thread for a (session, role) pair,
// creating one when none exists. Creation failures against the remote
// service produce a fallback-mode thread rather than an error; durable
// store failures are logged and the thread is served from cache.
func (m *Manager) GetOrCreateThread(ctx context.Context, sessionID, userID, role string) (*entity.ConversationThread, error) {
	if t, ok := m.cache.Get(ctx, sessionID, role); ok && t.Status == constant.ThreadStatusActive {
		return t, nil
	}

	mu := m.lockFor(sessionID, role)
	mu.Lock()
	defer mu.Unlock()

	if t, ok := m.cache.Get(ctx, sessionID, role); ok && t.Status == constant.ThreadStatusActive {
		return t, nil
	}

	uow := m.uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.ThreadRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByRole{Role: role},
		specification.ByStatus{Status: constant.ThreadStatusActive},
	)
	if err != nil {
		m.logger.Warn("threads", "thread lookup against durable store failed, treating as miss", map[string]interface{}{
			"sessionId": sessionID, "role": role, "error": err.Error(),
		})
	}
	if existing != nil {
		m.cache.Set(ctx, existing)
		return existing, nil
	}

	return m.createThread(ctx, uow, sessionID, userID, role)
}

func (m *Manager) createThread(ctx context.Context, uow unitofwork.UnitOfWork, sessionID, userID, role string) (*entity.ConversationThread, error) {
	threadID, err := m.remote.api.CreateThread(ctx)
	fallbackMode := false
	if err != nil {
		m.logger.Warn("threads", "remote thread creation failed, degrading to fallback mode", map[string]interface{}{
			"sessionId": sessionID, "role": role, "error": err.Error(),
		})
		threadID = NewFallbackThreadID(sessionID)
		fallbackMode = true
	}

	now := time.Now()
	thread := &entity.ConversationThread{
		Id:           uuid.New(),
		SessionId:    sessionID,
		UserId:       userID,
		Role:         role,
		ThreadId:     threadID,
		Status:       constant.ThreadStatusActive,
		FallbackMode: fallbackMode,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	if err := uow.ThreadRepository().Create(ctx, thread); err != nil {
		m.logger.Warn("threads", "thread mapping not persisted, continuing with cached thread", map[string]interface{}{
			"sessionId": sessionID, "role": role, "threadId": threadID, "error": err.Error(),
		})
	}

	m.cache.Set(ctx, thread)
	return thread, nil
}

// SendMessage runs one exchange on the session's thread for the given role.
// A remote failure mid-conversation flips the thread into fallback mode and
// retries the exchange locally, so a reachable completion provider always
// yields a reply. Cached threads are shared across goroutines and treated
// as immutable: state changes go through a fresh copy folded in under the
// per-key lock.
func (m *Manager) SendMessage(ctx context.Context, sessionID, userID, role, message, systemPrompt string) (string, error) {
	thread, err := m.GetOrCreateThread(ctx, sessionID, userID, role)
	if err != nil {
		return "", err
	}

	fallbackMode := thread.FallbackMode
	var reply string
	if fallbackMode {
		reply, err = m.fallback.exchange(ctx, thread, message, systemPrompt)
		if err != nil {
			return "", err
		}
	} else {
		reply, err = m.remote.exchange(ctx, thread, message, systemPrompt)
		if err != nil {
			m.logger.Warn("threads", "remote exchange failed, degrading thread to fallback mode", map[string]interface{}{
				"sessionId": sessionID, "role": role, "threadId": thread.ThreadId, "error": err.Error(),
			})
			fallbackMode = true
			reply, err = m.fallback.exchange(ctx, thread, message, systemPrompt)
			if err != nil {
				return "", err
			}
		}
	}

	mu := m.lockFor(sessionID, role)
	mu.Lock()
	// fold into the latest cached state so concurrent exchanges on the
	// same key never lose each other's counter bumps
	current := thread
	if cached, ok := m.cache.Get(ctx, sessionID, role); ok && cached.ThreadId == thread.ThreadId {
		current = cached
	}
	updated := *current
	updated.FallbackMode = updated.FallbackMode || fallbackMode
	updated.MessageCount += 2
	updated.LastUsedAt = time.Now()
	m.cache.Set(ctx, &updated)
	m.persist(ctx, &updated)
	mu.Unlock()

	return reply, nil
}

func (m *Manager) persist(ctx context.Context, thread *entity.ConversationThread) {
	uow := m.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ThreadRepository().Update(ctx, thread); err != nil {
		m.logger.Warn("threads", "thread state not persisted", map[string]interface{}{
			"sessionId": thread.SessionId, "role": thread.Role, "error": err.Error(),
		})
	}
}

// ResetThread marks the current thread as reset, drops its cached entry and
// any local fallback history, and provisions a fresh thread for the pair.
func (m *Manager) ResetThread(ctx context.Context, sessionID, userID, role string) (*entity.ConversationThread, error) {
	mu := m.lockFor(sessionID, role)
	mu.Lock()

	uow := m.uowFactory.NewUnitOfWork(ctx)
	current, err := uow.ThreadRepository().FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByRole{Role: role},
		specification.ByStatus{Status: constant.ThreadStatusActive},
	)
	if err != nil {
		m.logger.Warn("threads", "thread lookup during reset failed", map[string]interface{}{
			"sessionId": sessionID, "role": role, "error": err.Error(),
		})
	}
	if current == nil {
		if cached, ok := m.cache.Get(ctx, sessionID, role); ok {
			clone := *cached
			current = &clone
		}
	}

	if current != nil {
		current.Status = constant.ThreadStatusReset
		if err := uow.ThreadRepository().Update(ctx, current); err != nil {
			m.logger.Warn("threads", "reset status not persisted", map[string]interface{}{
				"sessionId": sessionID, "role": role, "error": err.Error(),
			})
		}
		m.fallback.store.Drop(current.ThreadId)
	}
	m.cache.Delete(ctx, sessionID, role)
	mu.Unlock()

	return m.GetOrCreateThread(ctx, sessionID, userID, role)
}

// History returns the locally stored conversation for a (session, role)
// pair. Remote-mode threads keep their history on the remote service, so
// this yields messages only for fallback-mode threads.
func (m *Manager) History(ctx context.Context, sessionID, role string) []llm.Message {
	thread, ok := m.cache.Get(ctx, sessionID, role)
	if !ok || !thread.FallbackMode {
		return nil
	}
	return m.fallback.store.History(thread.ThreadId)
}

// LoadUserThreadsToCache warms the cache with every active thread owned by
// a user, so a returning user's sessions resolve without durable lookups.
func (m *Manager) LoadUserThreadsToCache(ctx context.Context, userID string) (int, error) {
	uow := m.uowFactory.NewUnitOfWork(ctx)
	list, err := uow.ThreadRepository().FindAll(ctx,
		specification.ByUserID{UserID: userID},
		specification.ByStatus{Status: constant.ThreadStatusActive},
	)
	if err != nil {
		return 0, err
	}
	for _, t := range list {
		m.cache.Set(ctx, t)
	}
	return len(list), nil
}

// DeleteSession removes every thread mapping tied to a session, along with
// cached entries and local fallback history.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	uow := m.uowFactory.NewUnitOfWork(ctx)
	list, err := uow.ThreadRepository().FindAll(ctx, specification.BySessionID{SessionID: sessionID})
	if err != nil {
		return err
	}
	for _, t := range list {
		m.fallback.store.Drop(t.ThreadId)
		m.cache.Delete(ctx, sessionID, t.Role)
	}
	return uow.ThreadRepository().DeleteBySession(ctx, sessionID)
}

// CleanupOldThreads expires every active thread whose last use predates the
// cutoff and evicts the matching cache entries. Returns the expired count.
func (m *Manager) CleanupOldThreads(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	uow := m.uowFactory.NewUnitOfWork(ctx)
	stale, err := uow.ThreadRepository().FindAll(ctx,
		specification.ByStatus{Status: constant.ThreadStatusActive},
		specification.LastUsedBefore{Cutoff: cutoff},
	)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(stale))
	for _, t := range stale {
		ids = append(ids, t.Id)
	}
	if err := uow.ThreadRepository().UpdateStatus(ctx, ids, constant.ThreadStatusExpired); err != nil {
		return 0, err
	}
	for _, t := range stale {
		m.cache.Delete(ctx, t.SessionId, t.Role)
		m.fallback.store.Drop(t.ThreadId)
	}

	m.logger.Info("threads", "expired stale threads", map[string]interface{}{
		"count": len(stale), "cutoff": cutoff.Format(time.RFC3339),
	})
	return len(stale), nil
}

// StartCleanupLoop sweeps stale threads on the given interval until the
// context is cancelled.
func (m *Manager) StartCleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.CleanupOldThreads(ctx, maxAge); err != nil {
					m.logger.Error("threads", "thread cleanup sweep failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()
}
