package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId     string         `gorm:"type:text;not null;uniqueIndex"`
	UserId       string         `gorm:"type:text;not null;index"`
	SessionId    string         `gorm:"type:text;index"`
	FileName     string         `gorm:"type:text;not null"`
	Keywords     datatypes.JSON `gorm:"type:jsonb"`
	UploadDate   time.Time      `gorm:"not null"`
	QueryCount   int            `gorm:"default:0"`
	AvgRelevance float64        `gorm:"default:0"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
