package entity

import (
	"time"

	"github.com/google/uuid"
)

// VectorEntry is one embedded chunk stored in the vector index, scoped to a
// namespace. For live-source entries, SourceId groups entries subject to the
// rolling-window cap.
type VectorEntry struct {
	Id          uuid.UUID
	Namespace   string
	SourceId    string
	ChunkIndex  int
	TotalChunks int
	Text        string
	Embedding   []float32
	IsLiveData  bool
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}
