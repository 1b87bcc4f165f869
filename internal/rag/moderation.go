package rag

import "strings"

// moderationMessage is the user-visible text for rejected questions.
const moderationMessage = "question rejected by content moderation"

// defaultBlockedPatterns rejects questions the answer pipeline must not
// engage with. Matching is case-insensitive substring.
var defaultBlockedPatterns = []string{
	"how to launder",
	"money laundering step",
	"evade sanctions",
	"steal private key",
	"drain wallet",
	"phishing kit",
	"ransomware payload",
	"pump and dump scheme for",
	"counterfeit",
	"hack exchange",
}

// Moderator screens questions against a blocked-pattern list before any
// retrieval or generation happens.
type Moderator struct {
	patterns []string
}

// NewModerator builds a Moderator. Passing no patterns selects the
// default list.
func NewModerator(patterns ...string) *Moderator {
	if len(patterns) == 0 {
		patterns = defaultBlockedPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Moderator{patterns: lowered}
}

// Rejects reports whether the question matches a blocked pattern.
func (m *Moderator) Rejects(question string) bool {
	q := strings.ToLower(question)
	for _, p := range m.patterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}
