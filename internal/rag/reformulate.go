package rag

import "strings"

// maxContextTurns bounds how much history feeds the retrieval query.
const maxContextTurns = 3

// reformulateQuery builds the retrieval query from the question and the
// most recent user turns, so follow-ups like "what about its price?"
// retrieve against the subject established earlier in the conversation.
// It is a pure text transform.
func reformulateQuery(question string, history []ChatTurn) string {
	question = strings.TrimSpace(question)
	var recent []string
	for i := len(history) - 1; i >= 0 && len(recent) < maxContextTurns; i-- {
		if history[i].Role != RoleUser {
			continue
		}
		content := strings.TrimSpace(history[i].Content)
		if content == "" || strings.EqualFold(content, question) {
			continue
		}
		recent = append(recent, content)
	}
	if len(recent) == 0 {
		return question
	}
	// Oldest context first, question last: the question dominates the
	// tail of the embedded text.
	parts := make([]string, 0, len(recent)+1)
	for i := len(recent) - 1; i >= 0; i-- {
		parts = append(parts, recent[i])
	}
	parts = append(parts, question)
	return strings.Join(parts, ". ")
}
