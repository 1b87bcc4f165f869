package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup reduces an HTML fragment to its visible text with
// whitespace collapsed. Plain text passes through unchanged. It feeds
// fingerprinting and embedding input; display fields keep the original
// text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// embeddingText assembles the text embedded for an article: title,
// summary and content, markup stripped.
func embeddingText(a RawArticle) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Title, a.Summary, a.Content} {
		if text := StripMarkup(p); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ". ")
}
