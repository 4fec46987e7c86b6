package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type VectorEntry struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Namespace      string          `gorm:"type:text;not null;index:idx_entries_namespace_source"`
	SourceId       string          `gorm:"type:text;not null;index:idx_entries_namespace_source"`
	ChunkIndex     int             `gorm:"default:0"`
	TotalChunks    int             `gorm:"default:1"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text / text-embedding-004 dimensionality
	IsLiveData     bool            `gorm:"default:false;index"`
	Metadata       datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index"`
}

func (VectorEntry) TableName() string {
	return "vector_entries"
}
