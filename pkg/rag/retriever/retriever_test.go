package retriever

import (
	"context"
	"errors"
	"strings"
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
	"ai-research-be/internal/repository/specification"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/embedding"
	"ai-research-be/pkg/vectorstore"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Generate(string, string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}},
	}, nil
}

// scriptedVectorRepo serves pre-baked scored hits per namespace.
type scriptedVectorRepo struct {
	mu     sync.Mutex
	hits   map[string][]*contract.ScoredVectorEntry
	errs   map[string]error
	called []string
}

func (r *scriptedVectorRepo) SearchSimilarWithScore(_ context.Context, namespace string, _ []float32, limit int, threshold float64, _ string) ([]*contract.ScoredVectorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.called = append(r.called, namespace)
	if err := r.errs[namespace]; err != nil {
		return nil, err
	}
	out := make([]*contract.ScoredVectorEntry, 0)
	for _, sv := range r.hits[namespace] {
		if sv.Similarity >= threshold && len(out) < limit {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (r *scriptedVectorRepo) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.called...)
}

func (r *scriptedVectorRepo) Create(context.Context, *entity.VectorEntry) error        { return nil }
func (r *scriptedVectorRepo) CreateBulk(context.Context, []*entity.VectorEntry) error  { return nil }
func (r *scriptedVectorRepo) DeleteByIds(context.Context, []uuid.UUID) error           { return nil }
func (r *scriptedVectorRepo) DeleteBySource(context.Context, string, string) error     { return nil }
func (r *scriptedVectorRepo) DeleteByNamespace(context.Context, string) error          { return nil }
func (r *scriptedVectorRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.VectorEntry, error) {
	return nil, nil
}
func (r *scriptedVectorRepo) Count(context.Context, ...specification.Specification) (int64, error) {
	return 0, nil
}
func (r *scriptedVectorRepo) FindOldestBySource(context.Context, string, string, int) ([]*entity.VectorEntry, error) {
	return nil, nil
}

type scriptedDocRepo struct {
	mu      sync.Mutex
	docs    []*entity.Document
	findErr error
	usage   map[string]float64
}

func (r *scriptedDocRepo) FindBySourceIds(_ context.Context, sourceIds []string) ([]*entity.Document, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	want := make(map[string]bool, len(sourceIds))
	for _, id := range sourceIds {
		want[id] = true
	}
	var out []*entity.Document
	for _, doc := range r.docs {
		if want[doc.SourceId] {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *scriptedDocRepo) RecordUsage(_ context.Context, sourceId string, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usage == nil {
		r.usage = make(map[string]float64)
	}
	r.usage[sourceId] = score
	return nil
}

func (r *scriptedDocRepo) Create(context.Context, *entity.Document) error { return nil }
func (r *scriptedDocRepo) Update(context.Context, *entity.Document) error { return nil }
func (r *scriptedDocRepo) Delete(context.Context, uuid.UUID) error        { return nil }
func (r *scriptedDocRepo) FindOne(context.Context, ...specification.Specification) (*entity.Document, error) {
	return nil, nil
}
func (r *scriptedDocRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.Document, error) {
	return nil, nil
}

type retrieverUow struct {
	vectors *scriptedVectorRepo
	docs    *scriptedDocRepo
}

func (u *retrieverUow) Begin(context.Context) error { return nil }
func (u *retrieverUow) Commit() error               { return nil }
func (u *retrieverUow) Rollback() error             { return nil }

func (u *retrieverUow) ThreadRepository() contract.ThreadRepository           { return nil }
func (u *retrieverUow) DocumentRepository() contract.DocumentRepository       { return u.docs }
func (u *retrieverUow) VectorEntryRepository() contract.VectorEntryRepository { return u.vectors }
func (u *retrieverUow) LiveSourceRepository() contract.LiveSourceRepository   { return nil }

type retrieverFactory struct {
	uow *retrieverUow
}

func (f *retrieverFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func scored(namespace, sourceId string, chunkIndex int, text string, score float64) *contract.ScoredVectorEntry {
	return &contract.ScoredVectorEntry{
		Entry: &entity.VectorEntry{
			Id:         uuid.New(),
			Namespace:  namespace,
			SourceId:   sourceId,
			ChunkIndex: chunkIndex,
			Text:       text,
		},
		Similarity: score,
	}
}

func newTestRetriever(vectors *scriptedVectorRepo, docs *scriptedDocRepo, opts ...Option) *Retriever {
	factory := &retrieverFactory{uow: &retrieverUow{vectors: vectors, docs: docs}}
	store := vectorstore.NewStore(factory, &fakeEmbedder{}, logger.NewNop())
	return NewRetriever(store, factory, logger.NewNop(), opts...)
}

func TestSearchMergesBothNamespacesSortedByScore(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-a": {
			scored("sess-a", "doc-1", 0, "session chunk high", 0.9),
			scored("sess-a", "doc-1", 1, "session chunk low", 0.3),
			scored("sess-a", "doc-2", 0, "session chunk mid", 0.7),
		},
		constant.DefaultNamespace: {
			scored(constant.DefaultNamespace, "shared-1", 0, "shared chunk", 0.8),
			scored(constant.DefaultNamespace, "shared-2", 0, "shared noise", 0.2),
		},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-a", TopK: 3, MinRelevance: 0.35})
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	assert.Equal(t, 0.9, resp.Results[0].Score)
	assert.Equal(t, 0.8, resp.Results[1].Score)
	assert.Equal(t, 0.7, resp.Results[2].Score)
	assert.Equal(t, 3, resp.TotalResults)
}

func TestSearchQueriesOnlyDefaultNamespaceWithoutSession(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		constant.DefaultNamespace: {scored(constant.DefaultNamespace, "shared-1", 0, "shared chunk", 0.6)},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, []string{constant.DefaultNamespace}, vectors.calls())
}

// TopK=1 leaves no slots for the shared pool, so the default namespace
// must not be queried at all.
func TestSearchSkipsDefaultNamespaceWhenTopKLeavesNoRoom(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-k": {scored("sess-k", "doc-1", 0, "session chunk", 0.9)},
		constant.DefaultNamespace: {
			scored(constant.DefaultNamespace, "shared-1", 0, "shared chunk", 0.8),
		},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-k", TopK: 1})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-1", resp.Results[0].SourceID)
	assert.Equal(t, []string{"sess-k"}, vectors.calls())
}

func TestSearchSurvivesSecondaryNamespaceFailure(t *testing.T) {
	vectors := &scriptedVectorRepo{
		hits: map[string][]*contract.ScoredVectorEntry{
			"sess-b": {scored("sess-b", "doc-1", 0, "session chunk", 0.8)},
		},
		errs: map[string]error{constant.DefaultNamespace: errors.New("index offline")},
	}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-b"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-1", resp.Results[0].SourceID)
}

func TestSearchFailsWhenPrimaryNamespaceFails(t *testing.T) {
	vectors := &scriptedVectorRepo{errs: map[string]error{"sess-c": errors.New("index offline")}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	_, err := r.Search(context.Background(), "query", Options{SessionId: "sess-c"})
	assert.Error(t, err)
}

func TestSearchEnrichesResultsWithDocumentMetadata(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-d": {scored("sess-d", "doc-1", 0, "chunk", 0.8)},
	}}
	docs := &scriptedDocRepo{docs: []*entity.Document{{
		SourceId:   "doc-1",
		FileName:   "report.pdf",
		Keywords:   []string{"revenue", "q3"},
		UploadDate: time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
	}}}
	r := newTestRetriever(vectors, docs)

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-d"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "report.pdf", resp.Results[0].FileName)
	assert.Equal(t, []string{"revenue", "q3"}, resp.Results[0].Keywords)
	assert.Equal(t, "2026-05-14", resp.Results[0].UploadedAt)
}

func TestSearchDegradesWhenEnrichmentFails(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-e": {scored("sess-e", "doc-1", 0, "chunk text", 0.8)},
	}}
	docs := &scriptedDocRepo{findErr: errors.New("document store down")}
	r := newTestRetriever(vectors, docs)

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-e"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].FileName)
	assert.Equal(t, "chunk text", resp.Results[0].Text)
}

func TestSearchGroupsChunksByDocument(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-f": {
			scored("sess-f", "doc-1", 0, "a", 0.6),
			scored("sess-f", "doc-1", 1, "b", 0.8),
			scored("sess-f", "doc-2", 0, "c", 0.7),
		},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-f"})
	require.NoError(t, err)

	require.Len(t, resp.GroupedByDocument, 2)
	first := resp.GroupedByDocument[0]
	assert.Equal(t, "doc-1", first.SourceID)
	assert.Equal(t, 0.8, first.TopScore)
	assert.InDelta(t, 0.7, first.AvgScore, 1e-9)
	assert.Equal(t, 2, first.ChunkCount)
	// chunks inside a group come highest-score first
	assert.Equal(t, 0.8, first.Chunks[0].Score)
	assert.Equal(t, "doc-2", resp.GroupedByDocument[1].SourceID)
}

func TestBuildContextRespectsLengthCap(t *testing.T) {
	long := strings.Repeat("x", 400)
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-g": {
			scored("sess-g", "doc-1", 0, long, 0.9),
			scored("sess-g", "doc-1", 1, long, 0.8),
			scored("sess-g", "doc-2", 0, long, 0.7),
		},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{}, WithMaxContextLength(500))

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-g", IncludeContext: true})
	require.NoError(t, err)

	assert.True(t, resp.ContextTruncated)
	assert.LessOrEqual(t, len(resp.Context), 500)
	assert.Contains(t, resp.Context, "[Source: doc-1, Chunk 0, Relevance: 90%]")
	assert.Equal(t, 1, resp.SourcesUsed)
}

func TestBuildContextFitsAllWhenUnderCap(t *testing.T) {
	vectors := &scriptedVectorRepo{hits: map[string][]*contract.ScoredVectorEntry{
		"sess-h": {
			scored("sess-h", "doc-1", 0, "short one", 0.9),
			scored("sess-h", "doc-2", 0, "short two", 0.8),
		},
	}}
	r := newTestRetriever(vectors, &scriptedDocRepo{})

	resp, err := r.Search(context.Background(), "query", Options{SessionId: "sess-h", IncludeContext: true})
	require.NoError(t, err)

	assert.False(t, resp.ContextTruncated)
	assert.Equal(t, 2, resp.SourcesUsed)
	assert.Contains(t, resp.Context, "short one")
	assert.Contains(t, resp.Context, "short two")
}
