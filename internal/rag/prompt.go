package rag

import (
	"fmt"
	"strings"

	"github.com/coinwire/coinwire/internal/llm"
	"github.com/coinwire/coinwire/internal/store"
)

const systemPrompt = `You are a crypto news assistant. Answer the user's question using only the numbered article excerpts provided. Cite excerpts by number, e.g. [1]. If the excerpts do not cover the question, say so plainly instead of speculating. Never give financial advice. Keep answers concise and factual.`

const noMatchingArticlesNotice = "No matching articles were found in the index for this question. Tell the user that no recent coverage matched and answer only from general knowledge of the conversation so far, clearly flagged as such."

// maxHistoryTurns bounds how much conversation is replayed into the
// generation prompt.
const maxHistoryTurns = 10

// maxExcerptLen truncates long article bodies in the prompt.
const maxExcerptLen = 600

// buildMessages assembles the chat-completion request: system
// guidelines, numbered excerpts, recent history, then the question.
func buildMessages(question string, history []ChatTurn, articles []store.ScoredArticle) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, llm.Message{Role: "system", Content: renderExcerpts(articles)})

	start := 0
	if len(history) > maxHistoryTurns {
		start = len(history) - maxHistoryTurns
	}
	for _, turn := range history[start:] {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

func renderExcerpts(articles []store.ScoredArticle) string {
	if len(articles) == 0 {
		return noMatchingArticlesNotice
	}
	var b strings.Builder
	b.WriteString("Article excerpts:\n")
	for i, a := range articles {
		body := a.Summary
		if body == "" {
			body = a.Content
		}
		if len(body) > maxExcerptLen {
			body = body[:maxExcerptLen] + "..."
		}
		fmt.Fprintf(&b, "[%d] %s — %s, %s\n%s\n", i+1, a.Title, a.Source,
			a.PublishedAt.Format("2006-01-02"), body)
	}
	return b.String()
}
