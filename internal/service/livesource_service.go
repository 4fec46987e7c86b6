package service

import (
	"context"
	"fmt"
	"time"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/events"
	pktNats "ai-research-be/pkg/nats"
	"ai-research-be/pkg/vectorstore"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ILiveSourceService interface {
	Register(ctx context.Context, req *dto.RegisterLiveSourceRequest) (*dto.LiveSourceResponse, error)
	Pause(ctx context.Context, sourceId string) error
	Resume(ctx context.Context, sourceId string) error
	Deactivate(ctx context.Context, sourceId string) error
	GetAll(ctx context.Context, userId string) ([]*dto.LiveSourceResponse, error)
}

type liveSourceService struct {
	uowFactory     unitofwork.RepositoryFactory
	vectorStore    *vectorstore.Store
	eventPublisher *pktNats.Publisher
	validate       *validator.Validate
	logger         logger.ILogger
}

func NewLiveSourceService(
	uowFactory unitofwork.RepositoryFactory,
	vectorStore *vectorstore.Store,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
) ILiveSourceService {
	return &liveSourceService{
		uowFactory:     uowFactory,
		vectorStore:    vectorStore,
		eventPublisher: eventPublisher,
		validate:       validator.New(),
		logger:         sysLogger,
	}
}

func (s *liveSourceService) Register(ctx context.Context, req *dto.RegisterLiveSourceRequest) (*dto.LiveSourceResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid live source registration: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.LiveSourceRepository().FindBySourceId(ctx, req.SourceId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("live source %s already registered", req.SourceId)
	}

	maxEntries := req.MaxEntries
	if maxEntries == 0 {
		maxEntries = constant.LiveSourceDefaultEntries
	}
	interval := req.IntervalSeconds
	if interval == 0 {
		interval = 300
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = constant.DefaultNamespace
	}

	source := &entity.LiveSource{
		Id:                       uuid.New(),
		SourceId:                 req.SourceId,
		UserId:                   req.UserId,
		SessionId:                namespace,
		Name:                     req.Name,
		Url:                      req.Endpoint,
		Type:                     req.Type,
		MaxEntries:               maxEntries,
		IngestionIntervalSeconds: interval,
		Status:                   constant.LiveSourceStatusActive,
		CreatedAt:                time.Now(),
	}

	if err := uow.LiveSourceRepository().Create(ctx, source); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, "LIVE_SOURCE_REGISTERED", source)
	return toLiveSourceResponse(source), nil
}

func (s *liveSourceService) Pause(ctx context.Context, sourceId string) error {
	return s.transition(ctx, sourceId, constant.LiveSourceStatusPaused, "LIVE_SOURCE_PAUSED")
}

func (s *liveSourceService) Resume(ctx context.Context, sourceId string) error {
	return s.transition(ctx, sourceId, constant.LiveSourceStatusActive, "LIVE_SOURCE_RESUMED")
}

// Deactivate stops polling and clears the source's vector entries. The
// record itself is kept for audit.
func (s *liveSourceService) Deactivate(ctx context.Context, sourceId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.LiveSourceRepository().FindBySourceId(ctx, sourceId)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("live source %s not found", sourceId)
	}

	source.Status = constant.LiveSourceStatusStopped
	if err := uow.LiveSourceRepository().Update(ctx, source); err != nil {
		return err
	}

	if err := s.vectorStore.DeleteBySource(ctx, source.SessionId, source.SourceId); err != nil {
		s.logger.Warn("livesource", "vector cleanup on deactivation failed", map[string]interface{}{
			"sourceId": sourceId, "error": err.Error(),
		})
	}

	s.publishStatusEvent(ctx, "LIVE_SOURCE_DEACTIVATED", source)
	return nil
}

func (s *liveSourceService) GetAll(ctx context.Context, userId string) ([]*dto.LiveSourceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sources, err := uow.LiveSourceRepository().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.LiveSourceResponse, 0, len(sources))
	for _, source := range sources {
		if userId != "" && source.UserId != userId {
			continue
		}
		result = append(result, toLiveSourceResponse(source))
	}
	return result, nil
}

func (s *liveSourceService) transition(ctx context.Context, sourceId, status, eventType string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.LiveSourceRepository().FindBySourceId(ctx, sourceId)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("live source %s not found", sourceId)
	}

	source.Status = status
	if err := uow.LiveSourceRepository().Update(ctx, source); err != nil {
		return err
	}

	s.publishStatusEvent(ctx, eventType, source)
	return nil
}

func (s *liveSourceService) publishStatusEvent(ctx context.Context, eventType string, source *entity.LiveSource) {
	if s.eventPublisher == nil {
		return
	}

	evt := events.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"sourceId": source.SourceId,
			"name":     source.Name,
			"type":     source.Type,
			"status":   source.Status,
			"userId":   source.UserId,
		},
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Error("livesource", "failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}

func toLiveSourceResponse(source *entity.LiveSource) *dto.LiveSourceResponse {
	resp := &dto.LiveSourceResponse{
		SourceId:   source.SourceId,
		Name:       source.Name,
		Type:       source.Type,
		Endpoint:   source.Url,
		Status:     source.Status,
		MaxEntries: source.MaxEntries,
		Namespace:  source.SessionId,
		EntryCount: int64(source.Stats.TotalEntries),
	}
	if source.Stats.LastIngestion != nil {
		resp.LastPolledAt = source.Stats.LastIngestion.Format(time.RFC3339)
	}
	return resp
}
