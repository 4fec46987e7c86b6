package dto

type SearchRequest struct {
	Query          string  `json:"query" validate:"required"`
	UserId         string  `json:"user_id"`
	SessionId      string  `json:"session_id"`
	DocId          string  `json:"doc_id,omitempty"`
	TopK           int     `json:"top_k" validate:"omitempty,min=1,max=100"`
	MinRelevance   float64 `json:"min_relevance" validate:"omitempty,gte=0,lte=1"`
	IncludeContext bool    `json:"include_context"`
}

type SearchResultDTO struct {
	Id         string   `json:"id"`
	Score      float64  `json:"score"`
	Text       string   `json:"text"`
	SourceId   string   `json:"source_id"`
	FileName   string   `json:"file_name,omitempty"`
	ChunkIndex int      `json:"chunk_index"`
	Keywords   []string `json:"keywords,omitempty"`
	UploadedAt string   `json:"uploaded_at,omitempty"`
}

type DocumentGroupDTO struct {
	SourceId   string            `json:"source_id"`
	FileName   string            `json:"file_name,omitempty"`
	TopScore   float64           `json:"top_score"`
	AvgScore   float64           `json:"avg_score"`
	ChunkCount int               `json:"chunk_count"`
	Chunks     []SearchResultDTO `json:"chunks"`
}

type SearchResponse struct {
	Results           []SearchResultDTO  `json:"results"`
	Context           string             `json:"context,omitempty"`
	ContextTruncated  bool               `json:"context_truncated"`
	SourcesUsed       int                `json:"sources_used"`
	GroupedByDocument []DocumentGroupDTO `json:"grouped_by_document"`
	TotalResults      int                `json:"total_results"`
}
