package threadmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/specification"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/threads"
)

// fakeRemoteAPI is a scriptable stand-in for the remote thread service.
type fakeRemoteAPI struct {
	mu          sync.Mutex
	failCreate  bool
	failRun     bool
	nextThread  int
	nextRun     int
	lastMessage string
}

func (f *fakeRemoteAPI) CreateThread(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", &threads.RemoteError{Op: "create-thread", StatusCode: 503, Err: errors.New("unavailable")}
	}
	f.nextThread++
	return fmt.Sprintf("thread_%d", f.nextThread), nil
}

func (f *fakeRemoteAPI) AddMessage(_ context.Context, _, _, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRun {
		return &threads.RemoteError{Op: "add-message", StatusCode: 500, Err: errors.New("boom")}
	}
	f.lastMessage = content
	return nil
}

func (f *fakeRemoteAPI) CreateRun(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRun {
		return "", &threads.RemoteError{Op: "create-run", StatusCode: 500, Err: errors.New("boom")}
	}
	f.nextRun++
	return fmt.Sprintf("run_%d", f.nextRun), nil
}

func (f *fakeRemoteAPI) GetRunStatus(context.Context, string, string) (string, error) {
	return threads.RunStatusCompleted, nil
}

func (f *fakeRemoteAPI) LatestAssistantMessage(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "remote answer to: " + f.lastMessage, nil
}

// fakeCompletions is the stateless fallback provider.
type fakeCompletions struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeCompletions) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("completion down")
	}
	f.calls++
	return fmt.Sprintf("fallback reply %d (history %d)", f.calls, len(history)), nil
}

func (f *fakeCompletions) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// memThreadRepo keeps thread rows in a map and interprets the
// specifications the manager uses.
type memThreadRepo struct {
	mu      sync.Mutex
	threads map[uuid.UUID]*entity.ConversationThread
}

func newMemThreadRepo() *memThreadRepo {
	return &memThreadRepo{threads: make(map[uuid.UUID]*entity.ConversationThread)}
}

func (r *memThreadRepo) Create(_ context.Context, t *entity.ConversationThread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *t
	r.threads[t.Id] = &clone
	return nil
}

func (r *memThreadRepo) Update(_ context.Context, t *entity.ConversationThread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *t
	r.threads[t.Id] = &clone
	return nil
}

func (r *memThreadRepo) UpdateStatus(_ context.Context, ids []uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if t, ok := r.threads[id]; ok {
			t.Status = status
		}
	}
	return nil
}

func (r *memThreadRepo) DeleteBySession(_ context.Context, sessionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.threads {
		if t.SessionId == sessionId {
			delete(r.threads, id)
		}
	}
	return nil
}

func (r *memThreadRepo) match(specs []specification.Specification) []*entity.ConversationThread {
	var out []*entity.ConversationThread
	for _, t := range r.threads {
		ok := true
		for _, spec := range specs {
			switch s := spec.(type) {
			case specification.BySessionID:
				ok = ok && t.SessionId == s.SessionID
			case specification.ByUserID:
				ok = ok && t.UserId == s.UserID
			case specification.ByRole:
				ok = ok && t.Role == s.Role
			case specification.ByStatus:
				ok = ok && t.Status == s.Status
			case specification.LastUsedBefore:
				ok = ok && t.LastUsedAt.Before(s.Cutoff)
			}
		}
		if ok {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out
}

func (r *memThreadRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ConversationThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := r.match(specs)
	if len(matched) == 0 {
		return nil, nil
	}
	return matched[0], nil
}

func (r *memThreadRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.ConversationThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.match(specs), nil
}

func (r *memThreadRepo) Count(_ context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.match(specs))), nil
}

type threadUow struct {
	repo *memThreadRepo
}

func (u *threadUow) Begin(context.Context) error { return nil }
func (u *threadUow) Commit() error               { return nil }
func (u *threadUow) Rollback() error             { return nil }

func (u *threadUow) ThreadRepository() contract.ThreadRepository           { return u.repo }
func (u *threadUow) DocumentRepository() contract.DocumentRepository       { return nil }
func (u *threadUow) VectorEntryRepository() contract.VectorEntryRepository { return nil }
func (u *threadUow) LiveSourceRepository() contract.LiveSourceRepository   { return nil }

type threadFactory struct {
	uow *threadUow
}

func (f *threadFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func newTestManager(api *fakeRemoteAPI, completions *fakeCompletions) (*Manager, *memThreadRepo) {
	repo := newMemThreadRepo()
	mgr := NewManager(
		memory.NewThreadCacheRepository(),
		&threadFactory{uow: &threadUow{repo: repo}},
		api,
		completions,
		memory.NewFallbackMessageStore(),
		logger.NewNop(),
		Config{PollAttempts: 3, PollDelay: time.Millisecond},
	)
	return mgr, repo
}

func TestGetOrCreateThreadIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	first, err := mgr.GetOrCreateThread(ctx, "sess-1", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	second, err := mgr.GetOrCreateThread(ctx, "sess-1", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)

	assert.Equal(t, first.ThreadId, second.ThreadId)
	assert.False(t, first.FallbackMode)
}

func TestRolesGetIndependentThreads(t *testing.T) {
	mgr, _ := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	refiner, err := mgr.GetOrCreateThread(ctx, "sess-1", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	assistant, err := mgr.GetOrCreateThread(ctx, "sess-1", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)

	assert.NotEqual(t, refiner.ThreadId, assistant.ThreadId)
}

func TestCreateFallsBackWhenRemoteUnavailable(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{failCreate: true}, &fakeCompletions{})
	ctx := context.Background()

	thread, err := mgr.GetOrCreateThread(ctx, "sess-2", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)

	assert.True(t, thread.FallbackMode)
	assert.Contains(t, thread.ThreadId, "fallback_sess-2_")

	// mapping is still persisted durably
	stored, err := repo.FindOne(ctx, specification.BySessionID{SessionID: "sess-2"})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.FallbackMode)
}

func TestSendMessageRemotePath(t *testing.T) {
	mgr, _ := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	reply, err := mgr.SendMessage(ctx, "sess-3", "user-1", constant.ThreadRoleAssistant, "what is up", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "remote answer to: what is up", reply)
}

func TestSendMessageDegradesToFallbackMidConversation(t *testing.T) {
	api := &fakeRemoteAPI{}
	completions := &fakeCompletions{}
	mgr, _ := newTestManager(api, completions)
	ctx := context.Background()

	// thread created against a healthy remote
	thread, err := mgr.GetOrCreateThread(ctx, "sess-4", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)
	require.False(t, thread.FallbackMode)

	// remote starts failing mid-conversation
	api.mu.Lock()
	api.failRun = true
	api.mu.Unlock()

	reply, err := mgr.SendMessage(ctx, "sess-4", "user-1", constant.ThreadRoleAssistant, "still there?", "")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	after, err := mgr.GetOrCreateThread(ctx, "sess-4", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)
	assert.True(t, after.FallbackMode)

	// subsequent messages stay on the fallback path and accumulate history
	reply2, err := mgr.SendMessage(ctx, "sess-4", "user-1", constant.ThreadRoleAssistant, "and now?", "")
	require.NoError(t, err)
	assert.NotEmpty(t, reply2)
	assert.NotEqual(t, reply, reply2)
}

func TestSendMessageAlwaysRepliesWhenRemoteAlwaysFails(t *testing.T) {
	mgr, _ := newTestManager(&fakeRemoteAPI{failCreate: true, failRun: true}, &fakeCompletions{})
	ctx := context.Background()

	reply, err := mgr.SendMessage(ctx, "sess-5", "user-1", constant.ThreadRoleRefiner, "hello", "sys")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	thread, err := mgr.GetOrCreateThread(ctx, "sess-5", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	assert.True(t, thread.FallbackMode)
}

func TestResetThreadIssuesFreshThreadAndKeepsAudit(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	before, err := mgr.GetOrCreateThread(ctx, "sess-6", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)

	after, err := mgr.ResetThread(ctx, "sess-6", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)

	assert.NotEqual(t, before.ThreadId, after.ThreadId)
	assert.Equal(t, constant.ThreadStatusActive, after.Status)

	// the old row is archived, not deleted
	archived, err := repo.FindAll(ctx,
		specification.BySessionID{SessionID: "sess-6"},
		specification.ByStatus{Status: constant.ThreadStatusReset},
	)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, before.ThreadId, archived[0].ThreadId)
}

func TestCleanupOldThreadsExpiresStaleOnes(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	stale, err := mgr.GetOrCreateThread(ctx, "sess-old", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	stale.LastUsedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.Update(ctx, stale))

	fresh, err := mgr.GetOrCreateThread(ctx, "sess-new", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)

	expired, err := mgr.CleanupOldThreads(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// stale pair now resolves to a brand new thread
	replacement, err := mgr.GetOrCreateThread(ctx, "sess-old", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ThreadId, replacement.ThreadId)

	// fresh one is untouched
	still, err := mgr.GetOrCreateThread(ctx, "sess-new", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	assert.Equal(t, fresh.ThreadId, still.ThreadId)
}

func TestLoadUserThreadsToCache(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &entity.ConversationThread{
			Id:         uuid.New(),
			SessionId:  fmt.Sprintf("warm-%d", i),
			UserId:     "user-w",
			Role:       constant.ThreadRoleAssistant,
			ThreadId:   fmt.Sprintf("thread_warm_%d", i),
			Status:     constant.ThreadStatusActive,
			CreatedAt:  now,
			LastUsedAt: now,
		}))
	}

	loaded, err := mgr.LoadUserThreadsToCache(ctx, "user-w")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)

	// cache hit: no new thread is created for a warmed session
	thread, err := mgr.GetOrCreateThread(ctx, "warm-1", "user-w", constant.ThreadRoleAssistant)
	require.NoError(t, err)
	assert.Equal(t, "thread_warm_1", thread.ThreadId)
}

// The cache stale-check relies on getOrCreate skipping non-active cached
// entries; a cached thread that was expired elsewhere must be replaced.
func TestGetOrCreateSkipsNonActiveCachedThread(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	thread, err := mgr.GetOrCreateThread(ctx, "sess-7", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, []uuid.UUID{thread.Id}, constant.ThreadStatusExpired))
	expired := *thread
	expired.Status = constant.ThreadStatusExpired
	mgr.cache.Set(ctx, &expired)

	replacement, err := mgr.GetOrCreateThread(ctx, "sess-7", "user-1", constant.ThreadRoleRefiner)
	require.NoError(t, err)
	assert.Equal(t, constant.ThreadStatusActive, replacement.Status)
	assert.NotEqual(t, thread.ThreadId, replacement.ThreadId)
}

// Concurrent exchanges on one (session, role) pair must not lose counter
// updates or corrupt the cached thread state.
func TestConcurrentSendMessagesKeepMessageCount(t *testing.T) {
	mgr, repo := newTestManager(&fakeRemoteAPI{}, &fakeCompletions{})
	ctx := context.Background()

	const workers = 16
	const rounds = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, err := mgr.SendMessage(ctx, "sess-conc", "user-1", constant.ThreadRoleAssistant, fmt.Sprintf("msg %d-%d", w, i), "")
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	thread, err := mgr.GetOrCreateThread(ctx, "sess-conc", "user-1", constant.ThreadRoleAssistant)
	require.NoError(t, err)
	assert.Equal(t, workers*rounds*2, thread.MessageCount)
	assert.False(t, thread.FallbackMode)

	// the durable row carries the same final count
	stored, err := repo.FindOne(ctx, specification.BySessionID{SessionID: "sess-conc"})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, workers*rounds*2, stored.MessageCount)
}

func TestFallbackHistoryKeepsSingleSystemMessage(t *testing.T) {
	mgr, _ := newTestManager(&fakeRemoteAPI{failCreate: true}, &fakeCompletions{})
	ctx := context.Background()

	_, err := mgr.SendMessage(ctx, "sess-8", "user-1", constant.ThreadRoleAssistant, "first", "answer in one line")
	require.NoError(t, err)
	_, err = mgr.SendMessage(ctx, "sess-8", "user-1", constant.ThreadRoleAssistant, "second", "answer in one line")
	require.NoError(t, err)

	history := mgr.History(ctx, "sess-8", constant.ThreadRoleAssistant)
	require.NotEmpty(t, history)
	assert.Equal(t, constant.MessageRoleSystem, history[0].Role)

	systemMessages := 0
	for _, msg := range history {
		if msg.Role == constant.MessageRoleSystem {
			systemMessages++
		}
	}
	assert.Equal(t, 1, systemMessages)
	// two full user/assistant turns on top of the single system header
	assert.Len(t, history, 5)
}
