package mapper

import (
	"encoding/json"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"

	"gorm.io/datatypes"
)

type LiveSourceMapper struct{}

func NewLiveSourceMapper() *LiveSourceMapper {
	return &LiveSourceMapper{}
}

func (m *LiveSourceMapper) ToEntity(s *model.LiveSource) *entity.LiveSource {
	if s == nil {
		return nil
	}
	var stats entity.LiveSourceStats
	if len(s.Stats) > 0 {
		_ = json.Unmarshal(s.Stats, &stats)
	}
	updatedAt := s.UpdatedAt
	return &entity.LiveSource{
		Id:                       s.Id,
		SourceId:                 s.SourceId,
		UserId:                   s.UserId,
		SessionId:                s.SessionId,
		Name:                     s.Name,
		Url:                      s.Url,
		Type:                     s.Type,
		MaxEntries:               s.MaxEntries,
		IngestionIntervalSeconds: s.IngestionIntervalSeconds,
		Status:                   s.Status,
		Stats:                    stats,
		CreatedAt:                s.CreatedAt,
		UpdatedAt:                &updatedAt,
	}
}

func (m *LiveSourceMapper) ToModel(s *entity.LiveSource) *model.LiveSource {
	if s == nil {
		return nil
	}
	var stats datatypes.JSON
	if b, err := json.Marshal(s.Stats); err == nil {
		stats = b
	}
	out := &model.LiveSource{
		Id:                       s.Id,
		SourceId:                 s.SourceId,
		UserId:                   s.UserId,
		SessionId:                s.SessionId,
		Name:                     s.Name,
		Url:                      s.Url,
		Type:                     s.Type,
		MaxEntries:               s.MaxEntries,
		IngestionIntervalSeconds: s.IngestionIntervalSeconds,
		Status:                   s.Status,
		Stats:                    stats,
		CreatedAt:                s.CreatedAt,
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = *s.UpdatedAt
	}
	return out
}
