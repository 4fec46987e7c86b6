package answer

import (
	"context"
	"fmt"
	"strings"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/rag/prompt"
	"ai-research-be/pkg/rag/retriever"
)

// Request carries one answer-generation call over retrieved results.
type Request struct {
	Query      string
	Results    []retriever.Result
	Context    string
	UserId     string
	SessionId  string
	ReportMode bool
	History    []llm.Message
}

// Source attributes part of the answer to a document.
type Source struct {
	SourceID  string  `json:"sourceId"`
	FileName  string  `json:"fileName"`
	Relevance float64 `json:"relevance"`
}

type Result struct {
	Answer     string                 `json:"answer"`
	Sources    []Source               `json:"sources"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Conversation is the slice of the thread manager the assistant needs.
type Conversation interface {
	SendMessage(ctx context.Context, sessionID, userID, role, message, systemPrompt string) (string, error)
}

// Assistant is the answer-composition conversational role. Like the
// refiner it never errors out: with no model available it still produces a
// plain, low-confidence answer.
type Assistant struct {
	threads  Conversation
	composer *prompt.Composer
	logger   logger.ILogger
}

func NewAssistant(threads Conversation, sysLogger logger.ILogger) *Assistant {
	return &Assistant{
		threads:  threads,
		composer: prompt.NewComposer(),
		logger:   sysLogger,
	}
}

// GenerateAnswer composes the final answer from the retrieved context via
// the assistant thread, scoring confidence from retrieval quality and
// answer shape.
func (a *Assistant) GenerateAnswer(ctx context.Context, req Request) *Result {
	systemPrompt := a.composer.AnswerSystem(req.ReportMode)
	userPrompt := a.composer.AnswerUser(req.Query, req.Context, req.ReportMode)

	reply, err := a.threads.SendMessage(ctx, req.SessionId, req.UserId, constant.ThreadRoleAssistant, userPrompt, systemPrompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		detail := "empty reply"
		if err != nil {
			detail = err.Error()
		}
		a.logger.Warn("answer", "assistant thread unavailable, using fallback answer", map[string]interface{}{
			"sessionId": req.SessionId, "error": detail,
		})
		return a.FallbackAnswer(req)
	}

	sources := collectSources(req.Results)
	return &Result{
		Answer:     reply,
		Sources:    sources,
		Confidence: scoreConfidence(req.Results, reply, len(req.History) > 0),
		Metadata: map[string]interface{}{
			"mode":        mode(req.ReportMode),
			"resultCount": len(req.Results),
			"sourceCount": len(sources),
		},
	}
}

// FallbackAnswer is the model-free path. It always yields a non-empty
// answer with no sources and conservative confidence.
func (a *Assistant) FallbackAnswer(req Request) *Result {
	var answer string
	switch {
	case len(req.Results) == 0:
		answer = fmt.Sprintf("No relevant information was found for %q. Try rephrasing the question or uploading documents that cover the topic.", req.Query)
	default:
		var b strings.Builder
		b.WriteString("The answer service is temporarily unavailable. The most relevant passages found were:\n\n")
		limit := 3
		if len(req.Results) < limit {
			limit = len(req.Results)
		}
		for _, res := range req.Results[:limit] {
			name := res.FileName
			if name == "" {
				name = res.SourceID
			}
			excerpt := res.Text
			if len(excerpt) > 300 {
				excerpt = excerpt[:300] + "..."
			}
			b.WriteString(fmt.Sprintf("From %s: %s\n\n", name, excerpt))
		}
		answer = strings.TrimSpace(b.String())
	}

	confidence := 0.1
	if len(req.Results) > 0 {
		confidence = 0.3
	}

	return &Result{
		Answer:     answer,
		Sources:    []Source{},
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"mode":        mode(req.ReportMode),
			"fallback":    true,
			"resultCount": len(req.Results),
		},
	}
}

// scoreConfidence blends retrieval quality, result volume, answer length
// and conversational grounding, clamped to [0.1, 0.95].
func scoreConfidence(results []retriever.Result, answer string, hasHistory bool) float64 {
	var avgScore float64
	if len(results) > 0 {
		var sum float64
		for _, res := range results {
			sum += res.Score
		}
		avgScore = sum / float64(len(results))
	}

	countFactor := float64(len(results)) / 5
	if countFactor > 1 {
		countFactor = 1
	}
	lengthFactor := float64(len(answer)) / 500
	if lengthFactor > 1 {
		lengthFactor = 1
	}
	historyFactor := 0.0
	if hasHistory {
		historyFactor = 1
	}

	confidence := 0.4*avgScore + 0.3*countFactor + 0.2*lengthFactor + 0.1*historyFactor
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

func collectSources(results []retriever.Result) []Source {
	seen := make(map[string]int)
	sources := make([]Source, 0, len(results))
	for _, res := range results {
		if idx, ok := seen[res.SourceID]; ok {
			if res.Score > sources[idx].Relevance {
				sources[idx].Relevance = res.Score
			}
			continue
		}
		seen[res.SourceID] = len(sources)
		sources = append(sources, Source{
			SourceID:  res.SourceID,
			FileName:  res.FileName,
			Relevance: res.Score,
		})
	}
	return sources
}

func mode(reportMode bool) string {
	if reportMode {
		return "report"
	}
	return "chat"
}
