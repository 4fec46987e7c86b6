package mapper

import (
	"encoding/json"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type VectorEntryMapper struct{}

func NewVectorEntryMapper() *VectorEntryMapper {
	return &VectorEntryMapper{}
}

func (m *VectorEntryMapper) ToEntity(e *model.VectorEntry) *entity.VectorEntry {
	if e == nil {
		return nil
	}
	var metadata map[string]interface{}
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &metadata)
	}
	return &entity.VectorEntry{
		Id:          e.Id,
		Namespace:   e.Namespace,
		SourceId:    e.SourceId,
		ChunkIndex:  e.ChunkIndex,
		TotalChunks: e.TotalChunks,
		Text:        e.Document,
		Embedding:   e.EmbeddingValue.Slice(),
		IsLiveData:  e.IsLiveData,
		Metadata:    metadata,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *VectorEntryMapper) ToModel(e *entity.VectorEntry) *model.VectorEntry {
	if e == nil {
		return nil
	}
	var metadata datatypes.JSON
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			metadata = b
		}
	}
	return &model.VectorEntry{
		Id:             e.Id,
		Namespace:      e.Namespace,
		SourceId:       e.SourceId,
		ChunkIndex:     e.ChunkIndex,
		TotalChunks:    e.TotalChunks,
		Document:       e.Text,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		IsLiveData:     e.IsLiveData,
		Metadata:       metadata,
		CreatedAt:      e.CreatedAt,
	}
}
