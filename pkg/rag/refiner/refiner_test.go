package refiner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
)

// stubConversation returns one scripted reply, or an error.
type stubConversation struct {
	reply string
	err   error
}

func (s *stubConversation) SendMessage(context.Context, string, string, string, string, string) (string, error) {
	return s.reply, s.err
}

func TestRefineQueryParsesModelJSON(t *testing.T) {
	conv := &stubConversation{reply: `Here you go:
{"refinedQuery": "quarterly revenue growth drivers", "searchTerms": ["revenue", "growth"], "intent": "information_lookup", "confidence": 0.85, "reasoning": "focused on financials"}`}
	r := NewRefiner(conv, logger.NewNop())

	result := r.RefineQuery(context.Background(), Request{Query: "how did revenue grow?", SessionId: "s1"})

	require.NotNil(t, result)
	assert.Equal(t, "quarterly revenue growth drivers", result.RefinedQuery)
	assert.Equal(t, []string{"revenue", "growth"}, result.SearchTerms)
	assert.Equal(t, 0.85, result.Confidence)
}

func TestRefineQueryFallsBackWhenConversationFails(t *testing.T) {
	conv := &stubConversation{err: errors.New("thread service down")}
	r := NewRefiner(conv, logger.NewNop())

	result := r.RefineQuery(context.Background(), Request{Query: "tell me about the merger timeline", SessionId: "s1"})

	require.NotNil(t, result)
	assert.Equal(t, "merger timeline", result.RefinedQuery)
	assert.Equal(t, []string{"merger", "timeline"}, result.SearchTerms)
	assert.Equal(t, "information_lookup", result.Intent)
}

func TestRefineQueryFallsBackOnGarbageOutput(t *testing.T) {
	conv := &stubConversation{reply: "Sure! The refined query would probably be something about revenue."}
	r := NewRefiner(conv, logger.NewNop())

	result := r.RefineQuery(context.Background(), Request{Query: "what drives revenue?", SessionId: "s1"})

	require.NotNil(t, result)
	assert.Equal(t, "drives revenue", result.RefinedQuery)
}

func TestGreetingBecomesOverviewQuery(t *testing.T) {
	conv := &stubConversation{err: errors.New("down")}
	r := NewRefiner(conv, logger.NewNop())

	for _, greeting := range []string{"hi", "Hello!", "  hey  ", "Good morning", "thanks!"} {
		result := r.RefineQuery(context.Background(), Request{Query: greeting, SessionId: "s1"})
		require.NotNil(t, result, greeting)
		assert.Contains(t, result.RefinedQuery, "overview", greeting)
		assert.NotContains(t, strings.ToLower(result.RefinedQuery), strings.ToLower(strings.Trim(greeting, " !")), greeting)
	}
}

func TestModelEchoingGreetingIsSanitized(t *testing.T) {
	// the model parrots the greeting back as the refined query
	conv := &stubConversation{reply: `{"refinedQuery": "hello", "confidence": 0.9}`}
	r := NewRefiner(conv, logger.NewNop())

	result := r.RefineQuery(context.Background(), Request{Query: "hello", SessionId: "s1"})

	require.NotNil(t, result)
	assert.Contains(t, result.RefinedQuery, "overview")
	assert.NotEmpty(t, result.SearchTerms)
}

func TestSanitizeBackfillsDefaults(t *testing.T) {
	conv := &stubConversation{reply: `{"refinedQuery": "supply chain risks", "confidence": 1.7}`}
	r := NewRefiner(conv, logger.NewNop())

	result := r.RefineQuery(context.Background(), Request{Query: "supply chain?", SessionId: "s1"})

	require.NotNil(t, result)
	assert.Equal(t, "information_lookup", result.Intent)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, []string{"supply", "chain", "risks"}, result.SearchTerms)
}

func TestReportModeConsolidatesAllQuestions(t *testing.T) {
	conv := &stubConversation{err: errors.New("down")}
	r := NewRefiner(conv, logger.NewNop())

	history := []llm.Message{
		{Role: "user", Content: "what were the revenue drivers?"},
		{Role: "assistant", Content: "mostly subscriptions."},
		{Role: "user", Content: "how about churn rates?"},
		{Role: "assistant", Content: "churn fell."},
		{Role: "user", Content: "any supply chain risks?"},
	}

	result := r.RefineQuery(context.Background(), Request{
		Query:      "write the report",
		SessionId:  "s1",
		ReportMode: true,
		History:    history,
	})

	require.NotNil(t, result)
	assert.Equal(t, "report_synthesis", result.Intent)
	// one topic per user question
	assert.Len(t, result.TopicsCovered, 3)
	// consolidated terms cover every question without duplicates
	assert.Contains(t, result.SearchTerms, "revenue")
	assert.Contains(t, result.SearchTerms, "churn")
	assert.Contains(t, result.SearchTerms, "supply")
	assert.Equal(t, dedupe(result.SearchTerms), result.SearchTerms)
}

func TestReportModeBackfillsTopicsFromHistory(t *testing.T) {
	// model answers but covers fewer topics than questions asked
	conv := &stubConversation{reply: `{"refinedQuery": "full report", "searchTerms": ["report"], "confidence": 0.8, "topicsCovered": ["revenue"]}`}
	r := NewRefiner(conv, logger.NewNop())

	history := []llm.Message{
		{Role: "user", Content: "what were the revenue drivers?"},
		{Role: "user", Content: "how about churn rates?"},
	}

	result := r.RefineQuery(context.Background(), Request{
		Query:      "report please",
		SessionId:  "s1",
		ReportMode: true,
		History:    history,
	})

	require.NotNil(t, result)
	assert.Len(t, result.TopicsCovered, 2)
}

func TestKeywordsStripStopwordsAndPunctuation(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"What is the capital of France?", []string{"capital", "france"}},
		{"Tell me about margins, please.", []string{"margins"}},
		{"", nil},
		{"the a an of", nil},
	}
	for _, tt := range tests {
		got := keywords(tt.query)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.query)
			continue
		}
		assert.Equal(t, tt.want, got, tt.query)
	}
}
