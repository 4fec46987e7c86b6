package refiner

import (
	"context"
	"encoding/json"
	"strings"

	"ai-research-be/internal/constant"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/rag/prompt"
)

// Request carries one refinement call. History is the conversation so far,
// used in report mode to consolidate every question asked.
type Request struct {
	Query       string
	SessionDocs []string
	SessionId   string
	UserId      string
	ReportMode  bool
	History     []llm.Message
}

// Result is the structured refinement output.
type Result struct {
	RefinedQuery  string   `json:"refinedQuery"`
	SearchTerms   []string `json:"searchTerms"`
	Intent        string   `json:"intent"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	TopicsCovered []string `json:"topicsCovered"`
}

// Conversation is the slice of the thread manager the refiner needs.
type Conversation interface {
	SendMessage(ctx context.Context, sessionID, userID, role, message, systemPrompt string) (string, error)
}

// Refiner is the query-rewriting conversational role. It holds its own
// thread per session and never fails a request: when the model path is
// unavailable or returns garbage, a keyword heuristic takes over.
type Refiner struct {
	threads  Conversation
	composer *prompt.Composer
	logger   logger.ILogger
}

func NewRefiner(threads Conversation, sysLogger logger.ILogger) *Refiner {
	return &Refiner{
		threads:  threads,
		composer: prompt.NewComposer(),
		logger:   sysLogger,
	}
}

// RefineQuery rewrites a raw query into retrieval form. It always returns
// a usable result.
func (r *Refiner) RefineQuery(ctx context.Context, req Request) *Result {
	systemPrompt := r.composer.RefinerSystem(req.ReportMode)
	userPrompt := r.composer.RefinerUser(req.Query, req.SessionDocs, req.History, req.ReportMode)

	reply, err := r.threads.SendMessage(ctx, req.SessionId, req.UserId, constant.ThreadRoleRefiner, userPrompt, systemPrompt)
	if err != nil {
		r.logger.Warn("refiner", "model refinement unavailable, using heuristic", map[string]interface{}{
			"sessionId": req.SessionId, "error": err.Error(),
		})
		return r.heuristic(req)
	}

	result, err := parseResult(reply)
	if err != nil {
		r.logger.Warn("refiner", "unparseable refinement output, using heuristic", map[string]interface{}{
			"sessionId": req.SessionId, "error": err.Error(),
		})
		return r.heuristic(req)
	}

	r.sanitize(result, req)
	return result
}

// sanitize backfills fields a sloppy model response left empty.
func (r *Refiner) sanitize(result *Result, req Request) {
	result.RefinedQuery = strings.TrimSpace(result.RefinedQuery)
	if result.RefinedQuery == "" || isGreeting(result.RefinedQuery) {
		fallback := r.heuristic(req)
		result.RefinedQuery = fallback.RefinedQuery
		if len(result.SearchTerms) == 0 {
			result.SearchTerms = fallback.SearchTerms
		}
	}
	if len(result.SearchTerms) == 0 {
		result.SearchTerms = strings.Fields(result.RefinedQuery)
	}
	if result.Intent == "" {
		result.Intent = "information_lookup"
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}
	if req.ReportMode && len(result.TopicsCovered) < len(prompt.UserQuestions(req.History)) {
		result.TopicsCovered = topicsFromHistory(req.History)
	}
}

// heuristic is the model-free refinement path: stopword-stripped keywords,
// greeting queries turned into an overview request, and report mode
// consolidating every question in the history.
func (r *Refiner) heuristic(req Request) *Result {
	if req.ReportMode {
		questions := prompt.UserQuestions(req.History)
		terms := make([]string, 0)
		for _, q := range questions {
			terms = append(terms, keywords(q)...)
		}
		if req.Query != "" {
			terms = append(terms, keywords(req.Query)...)
		}
		terms = dedupe(terms)
		refined := strings.Join(terms, " ")
		if refined == "" {
			refined = "document overview summary main topics"
		}
		return &Result{
			RefinedQuery:  refined,
			SearchTerms:   terms,
			Intent:        "report_synthesis",
			Confidence:    0.4,
			Reasoning:     "heuristic consolidation of conversation questions",
			TopicsCovered: topicsFromHistory(req.History),
		}
	}

	if isGreeting(req.Query) {
		return &Result{
			RefinedQuery: "document overview summary main topics",
			SearchTerms:  []string{"overview", "summary", "main", "topics"},
			Intent:       "document_overview",
			Confidence:   0.3,
			Reasoning:    "greeting detected, substituted an overview query",
		}
	}

	terms := keywords(req.Query)
	refined := strings.Join(terms, " ")
	if refined == "" {
		refined = "document overview summary main topics"
		terms = []string{"overview", "summary", "main", "topics"}
	}
	return &Result{
		RefinedQuery: refined,
		SearchTerms:  terms,
		Intent:       "information_lookup",
		Confidence:   0.4,
		Reasoning:    "heuristic keyword extraction",
	}
}

func parseResult(response string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// extractJSON isolates the JSON object from a response that may wrap it in
// prose or code fences.
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"hiya": true, "howdy": true, "greetings": true, "good morning": true,
	"good afternoon": true, "good evening": true, "thanks": true,
	"thank you": true, "ok": true, "okay": true,
}

func isGreeting(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.Trim(normalized, "!.?,")
	return greetings[normalized]
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "would": true, "should": true,
	"what": true, "which": true, "who": true, "whom": true, "how": true,
	"when": true, "where": true, "why": true, "me": true, "my": true,
	"you": true, "your": true, "i": true, "we": true, "it": true,
	"this": true, "that": true, "these": true, "those": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "about": true, "and": true, "or": true, "tell": true,
	"show": true, "give": true, "please": true,
}

func keywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.Trim(field, "!.?,;:\"'()")
		if word == "" || stopwords[word] {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// topicsFromHistory derives at least one topic per user question.
func topicsFromHistory(history []llm.Message) []string {
	questions := prompt.UserQuestions(history)
	topics := make([]string, 0, len(questions))
	for _, q := range questions {
		terms := keywords(q)
		if len(terms) == 0 {
			topics = append(topics, strings.TrimSpace(q))
			continue
		}
		limit := 4
		if len(terms) < limit {
			limit = len(terms)
		}
		topics = append(topics, strings.Join(terms[:limit], " "))
	}
	return topics
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
