package mapper

import (
	"encoding/json"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"

	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	var keywords []string
	if len(d.Keywords) > 0 {
		// best effort: malformed keyword payloads degrade to an empty list
		_ = json.Unmarshal(d.Keywords, &keywords)
	}
	updatedAt := d.UpdatedAt
	return &entity.Document{
		Id:           d.Id,
		SourceId:     d.SourceId,
		UserId:       d.UserId,
		SessionId:    d.SessionId,
		FileName:     d.FileName,
		Keywords:     keywords,
		UploadDate:   d.UploadDate,
		QueryCount:   d.QueryCount,
		AvgRelevance: d.AvgRelevance,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    &updatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}
	var keywords datatypes.JSON
	if len(d.Keywords) > 0 {
		if b, err := json.Marshal(d.Keywords); err == nil {
			keywords = b
		}
	}
	out := &model.Document{
		Id:           d.Id,
		SourceId:     d.SourceId,
		UserId:       d.UserId,
		SessionId:    d.SessionId,
		FileName:     d.FileName,
		Keywords:     keywords,
		UploadDate:   d.UploadDate,
		QueryCount:   d.QueryCount,
		AvgRelevance: d.AvgRelevance,
		CreatedAt:    d.CreatedAt,
	}
	if d.UpdatedAt != nil {
		out.UpdatedAt = *d.UpdatedAt
	}
	return out
}
