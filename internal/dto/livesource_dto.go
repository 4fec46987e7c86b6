package dto

// RegisterLiveSourceRequest declares a feed, page or API endpoint to poll
// into the vector index under a rolling window.
type RegisterLiveSourceRequest struct {
	SourceId        string `json:"source_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Type            string `json:"type" validate:"required,oneof=feed page api"`
	Endpoint        string `json:"endpoint" validate:"required,url"`
	IntervalSeconds int    `json:"interval_seconds" validate:"omitempty,min=10"`
	MaxEntries      int    `json:"max_entries" validate:"omitempty,min=1,max=10000"`
	Namespace       string `json:"namespace"`
	UserId          string `json:"user_id" validate:"required"`
}

type LiveSourceResponse struct {
	SourceId     string `json:"source_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Endpoint     string `json:"endpoint"`
	Status       string `json:"status"`
	MaxEntries   int    `json:"max_entries"`
	Namespace    string `json:"namespace"`
	EntryCount   int64  `json:"entry_count"`
	LastPolledAt string `json:"last_polled_at,omitempty"`
}

// LiveEntryMessage is the bus payload carrying one ingested item from the
// polling side to the embedding consumer.
type LiveEntryMessage struct {
	SourceId   string                 `json:"source_id"`
	Payload    string                 `json:"payload"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	MaxEntries int                    `json:"max_entries"`
}
