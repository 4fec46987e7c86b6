package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LiveSource struct {
	Id                       uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId                 string         `gorm:"type:text;not null;uniqueIndex"`
	UserId                   string         `gorm:"type:text;not null;index"`
	SessionId                string         `gorm:"type:text;index"`
	Name                     string         `gorm:"type:text;not null"`
	Url                      string         `gorm:"type:text;not null"`
	Type                     string         `gorm:"type:text;not null"`
	MaxEntries               int            `gorm:"default:100"`
	IngestionIntervalSeconds int            `gorm:"default:300"`
	Status                   string         `gorm:"type:text;not null;index"`
	Stats                    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt                time.Time      `gorm:"autoCreateTime"`
	UpdatedAt                time.Time      `gorm:"autoUpdateTime"`
	DeletedAt                gorm.DeletedAt `gorm:"index"`
}

func (LiveSource) TableName() string {
	return "live_sources"
}
