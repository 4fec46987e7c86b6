package prompt

import (
	"fmt"
	"strings"

	"ai-research-be/pkg/llm"
)

// Composer builds the system and user prompts for the two conversational
// roles. Chat mode targets single-turn exchanges; report mode targets
// whole-conversation synthesis.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// RefinerSystem frames the query-refinement role.
func (c *Composer) RefinerSystem(reportMode bool) string {
	var b strings.Builder

	b.WriteString("You are a search query optimizer for a document retrieval system.\n")
	b.WriteString("You never answer questions. You rewrite them into retrieval-friendly form.\n\n")

	if reportMode {
		b.WriteString("Mode: report synthesis.\n")
		b.WriteString("Consolidate EVERY question the user asked during this conversation into one\n")
		b.WriteString("comprehensive search query that covers all topics raised. List each distinct\n")
		b.WriteString("topic separately in topicsCovered.\n\n")
	} else {
		b.WriteString("Mode: single query.\n")
		b.WriteString("Rewrite the query into a concise keyword phrase of 3 to 8 tokens.\n")
		b.WriteString("Greetings and vague openers become a request for a document overview,\n")
		b.WriteString("never pass them through unchanged.\n\n")
	}

	b.WriteString("Respond with JSON only, no prose around it:\n")
	b.WriteString(`{"refinedQuery": "...", "searchTerms": ["..."], "intent": "...", "confidence": 0.0, "reasoning": "...", "topicsCovered": ["..."]}`)
	b.WriteString("\n")

	return b.String()
}

// RefinerUser renders the refinement request, including the available
// documents and, in report mode, the questions asked so far.
func (c *Composer) RefinerUser(query string, sessionDocs []string, history []llm.Message, reportMode bool) string {
	var b strings.Builder

	if len(sessionDocs) > 0 {
		b.WriteString("Documents available in this session:\n")
		for _, doc := range sessionDocs {
			b.WriteString(fmt.Sprintf("- %s\n", doc))
		}
		b.WriteString("\n")
	}

	if reportMode {
		questions := UserQuestions(history)
		if len(questions) > 0 {
			b.WriteString("Questions asked during this conversation:\n")
			for i, q := range questions {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
			}
			b.WriteString("\n")
		}
		b.WriteString("Build one search query covering every topic above.\n")
		if query != "" {
			b.WriteString(fmt.Sprintf("The user's final request: %s\n", query))
		}
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Query to refine: %s\n", query))
	return b.String()
}

// AnswerSystem frames the answer-composition role over retrieved context.
func (c *Composer) AnswerSystem(reportMode bool) string {
	var b strings.Builder

	b.WriteString("You are a research assistant answering strictly from the provided context.\n")
	b.WriteString("When the context does not contain the answer, say so plainly instead of guessing.\n\n")

	if reportMode {
		b.WriteString("Produce a structured report with these sections:\n")
		b.WriteString("1. Executive Summary\n")
		b.WriteString("2. Analysis per topic, one subsection per question asked in the session\n")
		b.WriteString("3. Conclusions\n")
		b.WriteString("4. References\n")
		b.WriteString("Cover every question asked during the conversation.\n")
	} else {
		b.WriteString("Answer conversationally. Attribute claims to their source documents in\n")
		b.WriteString("natural language, then close with a short references list.\n")
	}

	return b.String()
}

// AnswerUser renders the answer request with its retrieved context block.
func (c *Composer) AnswerUser(query, context string, reportMode bool) string {
	var b strings.Builder

	if context != "" {
		b.WriteString("Retrieved context:\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No relevant context was retrieved for this query.\n\n")
	}

	if reportMode {
		b.WriteString("Compose the report now.\n")
		if query != "" {
			b.WriteString(fmt.Sprintf("The user's final request: %s\n", query))
		}
	} else {
		b.WriteString(fmt.Sprintf("Question: %s\n", query))
	}

	return b.String()
}

// UserQuestions extracts the user-authored turns from a conversation
// history, skipping empty ones.
func UserQuestions(history []llm.Message) []string {
	questions := make([]string, 0, len(history))
	for _, msg := range history {
		if msg.Role != "user" {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		questions = append(questions, content)
	}
	return questions
}
