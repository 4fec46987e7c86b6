package entity

import (
	"time"

	"github.com/google/uuid"
)

// LiveSourceStats are mutated by every ingestion cycle.
type LiveSourceStats struct {
	TotalEntries  int        `json:"totalEntries"`
	LastIngestion *time.Time `json:"lastIngestion,omitempty"`
	SuccessCount  int        `json:"successCount"`
	FailureCount  int        `json:"failureCount"`
}

// LiveSource is a configured external feed. Removal deactivates the record
// instead of hard-deleting it so ingestion history stays auditable.
type LiveSource struct {
	Id                       uuid.UUID
	SourceId                 string
	UserId                   string
	SessionId                string
	Name                     string
	Url                      string
	Type                     string
	MaxEntries               int
	IngestionIntervalSeconds int
	Status                   string
	Stats                    LiveSourceStats
	CreatedAt                time.Time
	UpdatedAt                *time.Time
}
