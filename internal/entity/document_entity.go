package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is the metadata record behind a sourceId. Retrieval enriches
// results from it and writes usage statistics back to it.
type Document struct {
	Id           uuid.UUID
	SourceId     string
	UserId       string
	SessionId    string
	FileName     string
	Keywords     []string
	UploadDate   time.Time
	QueryCount   int
	AvgRelevance float64
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
