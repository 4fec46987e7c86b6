package vectorstore

import (
	"context"
	"sync"
	"time"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/specification"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/embedding"

	"github.com/google/uuid"
)

const defaultEvictionBatch = 100

// Result is one retrieval hit. Ephemeral: produced per query, discarded
// after response assembly.
type Result struct {
	ID         uuid.UUID
	Score      float64
	Text       string
	SourceID   string
	Namespace  string
	ChunkIndex int
	Metadata   map[string]interface{}
}

// UpsertResult reports what one upsert wrote.
type UpsertResult struct {
	Ids        []uuid.UUID
	ChunkCount int
}

// Store is the vector store adapter: embeds text, writes namespace-scoped
// entries, runs similarity queries, and enforces the per-source rolling
// window on live data.
type Store struct {
	uowFactory    unitofwork.RepositoryFactory
	embedder      embedding.EmbeddingProvider
	logger        logger.ILogger
	chunkSize     int
	chunkOverlap  int
	evictionBatch int
	evictions     sync.WaitGroup
}

type StoreOption func(*Store)

func WithChunking(size, overlap int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
		if overlap >= 0 {
			s.chunkOverlap = overlap
		}
	}
}

func WithEvictionBatch(size int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.evictionBatch = size
		}
	}
}

func NewStore(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider, sysLogger logger.ILogger, opts ...StoreOption) *Store {
	s := &Store{
		uowFactory:    uowFactory,
		embedder:      embedder,
		logger:        sysLogger,
		chunkSize:     DefaultChunkSize,
		chunkOverlap:  DefaultChunkOverlap,
		evictionBatch: defaultEvictionBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed generates the embedding vector for text.
func (s *Store) Embed(text string) ([]float32, error) {
	res, err := s.embedder.Generate(text, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

// ChunkText splits text with the store's configured chunking parameters.
func (s *Store) ChunkText(text string) []string {
	return Chunk(text, s.chunkSize, s.chunkOverlap)
}

// Upsert embeds each chunk and writes one entry per chunk under namespace.
// A mid-batch failure returns a PartialUpsertError listing the chunk indices
// that made it in.
func (s *Store) Upsert(ctx context.Context, namespace, sourceId string, chunks []string, metadata map[string]interface{}) (*UpsertResult, error) {
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	ids := make([]uuid.UUID, 0, len(chunks))
	succeeded := make([]int, 0, len(chunks))

	for i, chunk := range chunks {
		res, err := s.embedder.Generate(chunk, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, &PartialUpsertError{
				Namespace:   namespace,
				SourceId:    sourceId,
				Succeeded:   succeeded,
				FailedIndex: i,
				Err:         err,
			}
		}

		entry := &entity.VectorEntry{
			Id:          uuid.New(),
			Namespace:   namespace,
			SourceId:    sourceId,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Text:        chunk,
			Embedding:   res.Embedding.Values,
			Metadata:    metadata,
			CreatedAt:   time.Now(),
		}
		if err := uow.VectorEntryRepository().Create(ctx, entry); err != nil {
			return nil, &PartialUpsertError{
				Namespace:   namespace,
				SourceId:    sourceId,
				Succeeded:   succeeded,
				FailedIndex: i,
				Err:         err,
			}
		}

		ids = append(ids, entry.Id)
		succeeded = append(succeeded, i)
	}

	return &UpsertResult{Ids: ids, ChunkCount: len(chunks)}, nil
}

// Query runs a similarity search in one namespace. sourceId narrows the
// search to a single document when non-empty. Results come back sorted by
// descending score.
func (s *Store) Query(ctx context.Context, namespace string, queryVector []float32, sourceId string, topK int, minScore float64) ([]Result, error) {
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.VectorEntryRepository().SearchSimilarWithScore(ctx, namespace, queryVector, topK, minScore, sourceId)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(scored))
	for i, sv := range scored {
		results[i] = Result{
			ID:         sv.Entry.Id,
			Score:      sv.Similarity,
			Text:       sv.Entry.Text,
			SourceID:   sv.Entry.SourceId,
			Namespace:  sv.Entry.Namespace,
			ChunkIndex: sv.Entry.ChunkIndex,
			Metadata:   sv.Entry.Metadata,
		}
	}
	return results, nil
}

func (s *Store) DeleteBySource(ctx context.Context, namespace, sourceId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.VectorEntryRepository().DeleteBySource(ctx, namespace, sourceId)
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.VectorEntryRepository().DeleteByNamespace(ctx, namespace)
}

// StoreLiveEntry embeds one live payload, writes it tagged isLiveData, and
// schedules rolling-window eviction for the source. The write does not wait
// for eviction; an eviction failure is logged and retried on the next write.
func (s *Store) StoreLiveEntry(ctx context.Context, sourceId, payload string, metadata map[string]interface{}, maxEntries int) (uuid.UUID, error) {
	if maxEntries < constant.LiveSourceMinEntries || maxEntries > constant.LiveSourceMaxEntries {
		maxEntries = constant.LiveSourceDefaultEntries
	}

	namespace := constant.DefaultNamespace
	if sid, ok := metadata["sessionId"].(string); ok && sid != "" {
		namespace = sid
	}

	res, err := s.embedder.Generate(payload, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return uuid.Nil, err
	}

	entry := &entity.VectorEntry{
		Id:          uuid.New(),
		Namespace:   namespace,
		SourceId:    sourceId,
		TotalChunks: 1,
		Text:        payload,
		Embedding:   res.Embedding.Values,
		IsLiveData:  true,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.VectorEntryRepository().Create(ctx, entry); err != nil {
		return uuid.Nil, err
	}

	s.evictions.Add(1)
	go func() {
		defer s.evictions.Done()
		// detached from the request context: the write already succeeded
		s.enforceWindow(context.Background(), namespace, sourceId, maxEntries)
	}()

	return entry.Id, nil
}

// enforceWindow deletes the oldest entries of a source down to maxEntries,
// in bounded batches.
func (s *Store) enforceWindow(ctx context.Context, namespace, sourceId string, maxEntries int) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.VectorEntryRepository()

	count, err := repo.Count(ctx,
		specification.ByNamespace{Namespace: namespace},
		specification.BySourceID{SourceID: sourceId},
	)
	if err != nil {
		s.logger.Warn("vectorstore", "rolling window count failed", map[string]interface{}{
			"namespace": namespace,
			"sourceId":  sourceId,
			"error":     err.Error(),
		})
		return
	}

	excess := int(count) - maxEntries
	if excess <= 0 {
		return
	}

	oldest, err := repo.FindOldestBySource(ctx, namespace, sourceId, excess)
	if err != nil {
		s.logger.Warn("vectorstore", "rolling window fetch failed", map[string]interface{}{
			"namespace": namespace,
			"sourceId":  sourceId,
			"error":     err.Error(),
		})
		return
	}

	for start := 0; start < len(oldest); start += s.evictionBatch {
		end := start + s.evictionBatch
		if end > len(oldest) {
			end = len(oldest)
		}
		ids := make([]uuid.UUID, 0, end-start)
		for _, e := range oldest[start:end] {
			ids = append(ids, e.Id)
		}
		if err := repo.DeleteByIds(ctx, ids); err != nil {
			s.logger.Warn("vectorstore", "rolling window delete failed", map[string]interface{}{
				"namespace": namespace,
				"sourceId":  sourceId,
				"batch":     len(ids),
				"error":     err.Error(),
			})
			return
		}
	}

	s.logger.Info("vectorstore", "rolling window evicted oldest entries", map[string]interface{}{
		"namespace": namespace,
		"sourceId":  sourceId,
		"evicted":   excess,
		"cap":       maxEntries,
	})
}

// Flush waits for in-flight evictions. Used on shutdown and in tests.
func (s *Store) Flush() {
	s.evictions.Wait()
}
