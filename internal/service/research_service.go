package service

import (
	"context"
	"fmt"
	"time"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/specification"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/rag/answer"
	"ai-research-be/pkg/rag/refiner"
	"ai-research-be/pkg/rag/retriever"
	"ai-research-be/pkg/rag/threadmgr"
	"ai-research-be/pkg/vectorstore"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type IResearchService interface {
	RefineQuery(ctx context.Context, req *dto.RefineQueryRequest) (*dto.RefineQueryResponse, error)
	Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error)
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	IngestDocument(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	DeleteDocument(ctx context.Context, sourceId string) error
	DeleteSession(ctx context.Context, sessionId string) error
	ResetConversation(ctx context.Context, sessionId, userId string) error
	LoadUserThreads(ctx context.Context, userId string) (int, error)
}

// researchService is the function-level API consumed by whatever transport
// sits on top. It chains refinement, retrieval and answer generation.
type researchService struct {
	uowFactory  unitofwork.RepositoryFactory
	vectorStore *vectorstore.Store
	retriever   *retriever.Retriever
	refiner     *refiner.Refiner
	assistant   *answer.Assistant
	threads     *threadmgr.Manager
	validate    *validator.Validate
	logger      logger.ILogger
}

func NewResearchService(
	uowFactory unitofwork.RepositoryFactory,
	vectorStore *vectorstore.Store,
	ret *retriever.Retriever,
	ref *refiner.Refiner,
	assistant *answer.Assistant,
	threads *threadmgr.Manager,
	sysLogger logger.ILogger,
) IResearchService {
	return &researchService{
		uowFactory:  uowFactory,
		vectorStore: vectorStore,
		retriever:   ret,
		refiner:     ref,
		assistant:   assistant,
		threads:     threads,
		validate:    validator.New(),
		logger:      sysLogger,
	}
}

func (s *researchService) RefineQuery(ctx context.Context, req *dto.RefineQueryRequest) (*dto.RefineQueryResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	result := s.refiner.RefineQuery(ctx, refiner.Request{
		Query:       req.Query,
		SessionDocs: req.SessionDocs,
		SessionId:   req.SessionId,
		UserId:      req.UserId,
		ReportMode:  req.ReportMode,
		History:     toMessages(req.History),
	})

	return &dto.RefineQueryResponse{
		RefinedQuery:  result.RefinedQuery,
		SearchTerms:   result.SearchTerms,
		Intent:        result.Intent,
		Confidence:    result.Confidence,
		Reasoning:     result.Reasoning,
		TopicsCovered: result.TopicsCovered,
	}, nil
}

func (s *researchService) Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	resp, err := s.retriever.Search(ctx, req.Query, retriever.Options{
		UserId:         req.UserId,
		SessionId:      req.SessionId,
		DocId:          req.DocId,
		TopK:           req.TopK,
		MinRelevance:   req.MinRelevance,
		IncludeContext: req.IncludeContext,
	})
	if err != nil {
		return nil, err
	}

	return toSearchResponse(resp), nil
}

// Ask runs the full pipeline: refine the query, retrieve context for the
// refined form, then answer the original question over that context.
func (s *researchService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	sessionDocs, history := s.sessionState(ctx, req.SessionId)

	refined := s.refiner.RefineQuery(ctx, refiner.Request{
		Query:       req.Query,
		SessionDocs: sessionDocs,
		SessionId:   req.SessionId,
		UserId:      req.UserId,
		ReportMode:  req.ReportMode,
		History:     history,
	})

	searchResp, err := s.retriever.Search(ctx, refined.RefinedQuery, retriever.Options{
		UserId:         req.UserId,
		SessionId:      req.SessionId,
		TopK:           req.TopK,
		IncludeContext: true,
	})
	if err != nil {
		s.logger.Warn("research", "retrieval failed, answering without context", map[string]interface{}{
			"sessionId": req.SessionId, "error": err.Error(),
		})
		searchResp = &retriever.SearchResponse{}
	}

	answered := s.assistant.GenerateAnswer(ctx, answer.Request{
		Query:      req.Query,
		Results:    searchResp.Results,
		Context:    searchResp.Context,
		UserId:     req.UserId,
		SessionId:  req.SessionId,
		ReportMode: req.ReportMode,
		History:    history,
	})

	sources := make([]dto.AnswerSourceDTO, 0, len(answered.Sources))
	for _, src := range answered.Sources {
		sources = append(sources, dto.AnswerSourceDTO{
			SourceId:  src.SourceID,
			FileName:  src.FileName,
			Relevance: src.Relevance,
		})
	}

	return &dto.AskResponse{
		Answer:       answered.Answer,
		Sources:      sources,
		Confidence:   answered.Confidence,
		RefinedQuery: refined.RefinedQuery,
		TotalResults: searchResp.TotalResults,
		Metadata:     answered.Metadata,
	}, nil
}

// IngestDocument chunks and embeds a document into the session namespace
// and records its metadata for retrieval enrichment.
func (s *researchService) IngestDocument(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	namespace := req.SessionId
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}

	chunks := s.vectorStore.ChunkText(req.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no indexable content", req.SourceId)
	}

	result, err := s.vectorStore.Upsert(ctx, namespace, req.SourceId, chunks, map[string]interface{}{
		"fileName": req.FileName,
		"userId":   req.UserId,
	})
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc := &entity.Document{
		Id:         uuid.New(),
		SourceId:   req.SourceId,
		UserId:     req.UserId,
		SessionId:  req.SessionId,
		FileName:   req.FileName,
		Keywords:   req.Keywords,
		UploadDate: time.Now(),
		CreatedAt:  time.Now(),
	}
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		s.logger.Warn("research", "document metadata not persisted", map[string]interface{}{
			"sourceId": req.SourceId, "error": err.Error(),
		})
	}

	return &dto.IngestDocumentResponse{
		SourceId:   req.SourceId,
		ChunkCount: result.ChunkCount,
		Namespace:  namespace,
	}, nil
}

func (s *researchService) DeleteDocument(ctx context.Context, sourceId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.Filter("source_id", sourceId))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", sourceId)
	}

	namespace := doc.SessionId
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}
	if err := s.vectorStore.DeleteBySource(ctx, namespace, sourceId); err != nil {
		return err
	}
	return uow.DocumentRepository().Delete(ctx, doc.Id)
}

// DeleteSession tears down a session's namespace, its documents and its
// conversation threads.
func (s *researchService) DeleteSession(ctx context.Context, sessionId string) error {
	if err := s.vectorStore.DeleteNamespace(ctx, sessionId); err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx, specification.Filter("session_id", sessionId))
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := uow.DocumentRepository().Delete(ctx, doc.Id); err != nil {
			s.logger.Warn("research", "document record not removed", map[string]interface{}{
				"sourceId": doc.SourceId, "error": err.Error(),
			})
		}
	}

	return s.threads.DeleteSession(ctx, sessionId)
}

func (s *researchService) ResetConversation(ctx context.Context, sessionId, userId string) error {
	if _, err := s.threads.ResetThread(ctx, sessionId, userId, constant.ThreadRoleRefiner); err != nil {
		return err
	}
	_, err := s.threads.ResetThread(ctx, sessionId, userId, constant.ThreadRoleAssistant)
	return err
}

func (s *researchService) LoadUserThreads(ctx context.Context, userId string) (int, error) {
	return s.threads.LoadUserThreadsToCache(ctx, userId)
}

// sessionState gathers the session's document names and its fallback-side
// conversation history for prompt construction. Both are best effort.
func (s *researchService) sessionState(ctx context.Context, sessionId string) ([]string, []llm.Message) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx, specification.Filter("session_id", sessionId))
	if err != nil {
		s.logger.Warn("research", "session document listing failed", map[string]interface{}{
			"sessionId": sessionId, "error": err.Error(),
		})
		docs = nil
	}

	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc.FileName)
	}
	return names, s.threads.History(ctx, sessionId, constant.ThreadRoleRefiner)
}

func toMessages(history []dto.MessageDTO) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return messages
}

func toSearchResponse(resp *retriever.SearchResponse) *dto.SearchResponse {
	results := make([]dto.SearchResultDTO, 0, len(resp.Results))
	for _, res := range resp.Results {
		results = append(results, toSearchResultDTO(res))
	}

	groups := make([]dto.DocumentGroupDTO, 0, len(resp.GroupedByDocument))
	for _, group := range resp.GroupedByDocument {
		chunks := make([]dto.SearchResultDTO, 0, len(group.Chunks))
		for _, chunk := range group.Chunks {
			chunks = append(chunks, toSearchResultDTO(chunk))
		}
		groups = append(groups, dto.DocumentGroupDTO{
			SourceId:   group.SourceID,
			FileName:   group.FileName,
			TopScore:   group.TopScore,
			AvgScore:   group.AvgScore,
			ChunkCount: group.ChunkCount,
			Chunks:     chunks,
		})
	}

	return &dto.SearchResponse{
		Results:           results,
		Context:           resp.Context,
		ContextTruncated:  resp.ContextTruncated,
		SourcesUsed:       resp.SourcesUsed,
		GroupedByDocument: groups,
		TotalResults:      resp.TotalResults,
	}
}

func toSearchResultDTO(res retriever.Result) dto.SearchResultDTO {
	return dto.SearchResultDTO{
		Id:         res.ID,
		Score:      res.Score,
		Text:       res.Text,
		SourceId:   res.SourceID,
		FileName:   res.FileName,
		ChunkIndex: res.ChunkIndex,
		Keywords:   res.Keywords,
		UploadedAt: res.UploadedAt,
	}
}
