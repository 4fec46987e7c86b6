package dto

// AskRequest is the full pipeline entry: refine, retrieve, answer.
type AskRequest struct {
	Query      string `json:"query" validate:"required"`
	SessionId  string `json:"session_id" validate:"required"`
	UserId     string `json:"user_id" validate:"required"`
	ReportMode bool   `json:"report_mode"`
	TopK       int    `json:"top_k" validate:"omitempty,min=1,max=100"`
}

type RefineQueryRequest struct {
	Query       string       `json:"query"`
	SessionDocs []string     `json:"session_docs,omitempty"`
	SessionId   string       `json:"session_id" validate:"required"`
	UserId      string       `json:"user_id" validate:"required"`
	ReportMode  bool         `json:"report_mode"`
	History     []MessageDTO `json:"history,omitempty"`
}

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RefineQueryResponse struct {
	RefinedQuery  string   `json:"refined_query"`
	SearchTerms   []string `json:"search_terms"`
	Intent        string   `json:"intent"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	TopicsCovered []string `json:"topics_covered,omitempty"`
}

type AnswerSourceDTO struct {
	SourceId  string  `json:"source_id"`
	FileName  string  `json:"file_name,omitempty"`
	Relevance float64 `json:"relevance"`
}

type AskResponse struct {
	Answer       string                 `json:"answer"`
	Sources      []AnswerSourceDTO      `json:"sources"`
	Confidence   float64                `json:"confidence"`
	RefinedQuery string                 `json:"refined_query"`
	TotalResults int                    `json:"total_results"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type IngestDocumentRequest struct {
	SourceId  string   `json:"source_id" validate:"required"`
	FileName  string   `json:"file_name" validate:"required"`
	Content   string   `json:"content" validate:"required"`
	SessionId string   `json:"session_id"`
	UserId    string   `json:"user_id" validate:"required"`
	Keywords  []string `json:"keywords,omitempty"`
}

type IngestDocumentResponse struct {
	SourceId   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
	Namespace  string `json:"namespace"`
}
