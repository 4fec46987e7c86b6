package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/vectorstore"
)

const (
	DefaultTopK          = 10
	DefaultMinRelevance  = 0.35
	DefaultMaxContextLen = 4000
)

// Options narrows a search to a session partition, an optional single
// document, and the ranking knobs.
type Options struct {
	UserId         string
	SessionId      string
	DocId          string
	TopK           int
	MinRelevance   float64
	IncludeContext bool
}

// Result is one retrieved chunk, possibly enriched with document metadata.
type Result struct {
	ID         string
	Score      float64
	Text       string
	SourceID   string
	Namespace  string
	ChunkIndex int
	FileName   string
	UploadedAt string
	Keywords   []string
	Metadata   map[string]interface{}
}

// DocumentGroup aggregates all surviving chunks of one source document.
type DocumentGroup struct {
	SourceID   string
	FileName   string
	TopScore   float64
	AvgScore   float64
	Chunks     []Result
	ChunkCount int
}

type SearchResponse struct {
	Results           []Result
	Context           string
	ContextTruncated  bool
	SourcesUsed       int
	GroupedByDocument []DocumentGroup
	TotalResults      int
}

// Retriever runs dual-namespace semantic search over the vector store and
// shapes the hits into an answer-ready context block.
type Retriever struct {
	store         *vectorstore.Store
	uowFactory    unitofwork.RepositoryFactory
	logger        logger.ILogger
	maxContextLen int
}

type Option func(*Retriever)

func WithMaxContextLength(length int) Option {
	return func(r *Retriever) {
		if length > 0 {
			r.maxContextLen = length
		}
	}
}

func NewRetriever(store *vectorstore.Store, uowFactory unitofwork.RepositoryFactory, sysLogger logger.ILogger, opts ...Option) *Retriever {
	r := &Retriever{
		store:         store,
		uowFactory:    uowFactory,
		logger:        sysLogger,
		maxContextLen: DefaultMaxContextLen,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search embeds the query once, fans out to the session namespace and the
// shared default namespace, then merges, filters, enriches and groups the
// hits. Secondary-namespace and enrichment failures degrade the response
// instead of failing it.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) (*SearchResponse, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinRelevance <= 0 {
		opts.MinRelevance = DefaultMinRelevance
	}

	queryVector, err := r.store.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	namespace := opts.SessionId
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}

	var (
		wg        sync.WaitGroup
		secondary []vectorstore.Result
	)
	// the shared pool gets half the candidate slots; skip the query entirely
	// when that half rounds down to zero
	secondaryLimit := opts.TopK / 2
	if namespace != constant.DefaultNamespace && secondaryLimit > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := r.store.Query(ctx, constant.DefaultNamespace, queryVector, opts.DocId, secondaryLimit, opts.MinRelevance)
			if err != nil {
				r.logger.Warn("retriever", "default namespace search degraded", map[string]interface{}{
					"sessionId": opts.SessionId, "error": err.Error(),
				})
				return
			}
			secondary = hits
		}()
	}

	primary, err := r.store.Query(ctx, namespace, queryVector, opts.DocId, opts.TopK, opts.MinRelevance)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("namespace %s search failed: %w", namespace, err)
	}

	merged := r.merge(primary, secondary, opts.MinRelevance, opts.TopK)
	results := r.enrich(ctx, merged)

	resp := &SearchResponse{
		Results:           results,
		GroupedByDocument: r.group(results),
		TotalResults:      len(results),
	}
	if opts.IncludeContext {
		resp.Context, resp.ContextTruncated, resp.SourcesUsed = r.buildContext(results)
	}

	go r.recordUsage(results)

	return resp, nil
}

func (r *Retriever) merge(primary, secondary []vectorstore.Result, minRelevance float64, topK int) []vectorstore.Result {
	merged := make([]vectorstore.Result, 0, len(primary)+len(secondary))
	for _, hit := range append(primary, secondary...) {
		if hit.Score < minRelevance {
			continue
		}
		merged = append(merged, hit)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// enrich joins the hits with document-store metadata in one batched lookup.
// A failed lookup leaves hits un-enriched.
func (r *Retriever) enrich(ctx context.Context, hits []vectorstore.Result) []Result {
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:         hit.ID.String(),
			Score:      hit.Score,
			Text:       hit.Text,
			SourceID:   hit.SourceID,
			Namespace:  hit.Namespace,
			ChunkIndex: hit.ChunkIndex,
			Metadata:   hit.Metadata,
		})
	}
	if len(results) == 0 {
		return results
	}

	seen := make(map[string]bool)
	sourceIds := make([]string, 0, len(results))
	for _, res := range results {
		if !seen[res.SourceID] {
			seen[res.SourceID] = true
			sourceIds = append(sourceIds, res.SourceID)
		}
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindBySourceIds(ctx, sourceIds)
	if err != nil {
		r.logger.Warn("retriever", "metadata enrichment degraded", map[string]interface{}{
			"sources": len(sourceIds), "error": err.Error(),
		})
		return results
	}

	bySource := make(map[string]*entity.Document, len(docs))
	for _, doc := range docs {
		bySource[doc.SourceId] = doc
	}
	for i := range results {
		doc, ok := bySource[results[i].SourceID]
		if !ok {
			continue
		}
		results[i].FileName = doc.FileName
		results[i].Keywords = doc.Keywords
		if !doc.UploadDate.IsZero() {
			results[i].UploadedAt = doc.UploadDate.Format("2006-01-02")
		}
	}
	return results
}

func (r *Retriever) group(results []Result) []DocumentGroup {
	order := make([]string, 0)
	groups := make(map[string]*DocumentGroup)
	for _, res := range results {
		g, ok := groups[res.SourceID]
		if !ok {
			g = &DocumentGroup{SourceID: res.SourceID, FileName: res.FileName}
			groups[res.SourceID] = g
			order = append(order, res.SourceID)
		}
		g.Chunks = append(g.Chunks, res)
		g.ChunkCount++
		if res.Score > g.TopScore {
			g.TopScore = res.Score
		}
	}

	out := make([]DocumentGroup, 0, len(order))
	for _, sourceId := range order {
		g := groups[sourceId]
		var sum float64
		for _, c := range g.Chunks {
			sum += c.Score
		}
		g.AvgScore = sum / float64(len(g.Chunks))
		sort.Slice(g.Chunks, func(i, j int) bool {
			return g.Chunks[i].Score > g.Chunks[j].Score
		})
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TopScore > out[j].TopScore
	})
	return out
}

// buildContext concatenates chunks (already sorted by score) under source
// headers until the length cap would be exceeded.
func (r *Retriever) buildContext(results []Result) (string, bool, int) {
	var (
		builder   strings.Builder
		truncated bool
		sources   = make(map[string]bool)
	)

	for _, res := range results {
		name := res.FileName
		if name == "" {
			name = res.SourceID
		}
		block := fmt.Sprintf("[Source: %s, Chunk %d, Relevance: %.0f%%]\n%s\n\n",
			name, res.ChunkIndex, res.Score*100, res.Text)

		if builder.Len()+len(block) > r.maxContextLen {
			truncated = true
			break
		}
		builder.WriteString(block)
		sources[res.SourceID] = true
	}

	return strings.TrimRight(builder.String(), "\n"), truncated, len(sources)
}

// recordUsage bumps query counters and running average relevance for every
// touched document. Best effort only.
func (r *Retriever) recordUsage(results []Result) {
	if len(results) == 0 {
		return
	}
	ctx := context.Background()
	uow := r.uowFactory.NewUnitOfWork(ctx)

	best := make(map[string]float64)
	for _, res := range results {
		if score, ok := best[res.SourceID]; !ok || res.Score > score {
			best[res.SourceID] = res.Score
		}
	}
	for sourceId, score := range best {
		if err := uow.DocumentRepository().RecordUsage(ctx, sourceId, score); err != nil {
			r.logger.Warn("retriever", "usage stat update failed", map[string]interface{}{
				"sourceId": sourceId, "error": err.Error(),
			})
		}
	}
}
